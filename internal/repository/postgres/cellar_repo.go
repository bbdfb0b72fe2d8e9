package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/winecellar/internal/errs"
	"github.com/and161185/winecellar/internal/model"
	"github.com/jackc/pgx/v5"
)

// CellarRepo implements CellarRepository using PostgreSQL.
type CellarRepo struct{ db *DB }

// NewCellarRepo constructs a cellar repository.
func NewCellarRepo(db *DB) *CellarRepo { return &CellarRepo{db: db} }

// Add finds or creates the wine by (name, vintage) and adds bottles to the
// entry keyed by (wine, storage, size), inserting the entry when absent.
func (r *CellarRepo) Add(ctx context.Context, ownerID int64, req model.AddBottles) (entry model.CellarEntry, err error) {
	err = r.db.withTx(ctx, func(tx pgx.Tx) error {
		if err := checkStorage(ctx, tx, ownerID, req.StorageID); err != nil {
			return err
		}
		wineID, err := findOrCreateWine(ctx, tx, req.Wine)
		if err != nil {
			return err
		}
		key := model.BottleKey{WineID: wineID, StorageID: req.StorageID, BottleSize: req.BottleSize}
		entry, err = addToEntry(ctx, tx, ownerID, key, req.Quantity)
		return err
	})
	return entry, err
}

// Consume subtracts bottles from an entry; an entry reaching zero is deleted.
func (r *CellarRepo) Consume(ctx context.Context, ownerID int64, req model.Consume) (remaining int, rating *model.Rating, err error) {
	err = r.db.withTx(ctx, func(tx pgx.Tx) error {
		if remaining, err = subtract(ctx, tx, ownerID, req.Key, req.Quantity); err != nil {
			return err
		}
		if req.Rating == nil {
			return nil
		}
		nr := *req.Rating
		nr.WineID = req.Key.WineID
		rating, err = insertRating(ctx, tx, ownerID, nr)
		return err
	})
	if err != nil {
		return 0, nil, err
	}
	return remaining, rating, nil
}

// Transfer moves bottles from one storage unit to another in one transaction.
func (r *CellarRepo) Transfer(ctx context.Context, ownerID int64, req model.Transfer) (entry model.CellarEntry, err error) {
	if req.FromStorageID == req.ToStorageID {
		return model.CellarEntry{}, fmt.Errorf("source and target storage are the same: %w", errs.ErrValidation)
	}
	err = r.db.withTx(ctx, func(tx pgx.Tx) error {
		if err := checkStorage(ctx, tx, ownerID, req.ToStorageID); err != nil {
			return err
		}
		from := model.BottleKey{WineID: req.WineID, StorageID: req.FromStorageID, BottleSize: req.BottleSize}
		if _, err := subtract(ctx, tx, ownerID, from, req.Quantity); err != nil {
			return err
		}
		to := model.BottleKey{WineID: req.WineID, StorageID: req.ToStorageID, BottleSize: req.BottleSize}
		entry, err = addToEntry(ctx, tx, ownerID, to, req.Quantity)
		return err
	})
	return entry, err
}

func checkStorage(ctx context.Context, tx pgx.Tx, ownerID, storageID int64) error {
	const q = `SELECT id FROM storages WHERE id=$1 AND owner_id=$2`
	var id int64
	if err := tx.QueryRow(ctx, q, storageID, ownerID).Scan(&id); err != nil {
		return fmt.Errorf("storage %d: %w", storageID, mapErr(err))
	}
	return nil
}

func findOrCreateWine(ctx context.Context, tx pgx.Tx, w model.Wine) (int64, error) {
	const sel = `SELECT id FROM wines WHERE name=$1 AND vintage=$2 ORDER BY id LIMIT 1`
	const ins = `
INSERT INTO wines (name, vintage, grapes, type, drink_from, drink_before, alcohol, geographic_info, quality_signature)
VALUES (@name, @vintage, @grapes, @type, @drink_from, @drink_before, @alcohol, @geographic_info, @quality_signature)
RETURNING id`

	var id int64
	err := tx.QueryRow(ctx, sel, w.Name, w.Vintage).Scan(&id)
	switch {
	case err == nil:
		return id, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return 0, err
	}
	err = tx.QueryRow(ctx, ins, pgx.NamedArgs{
		"name":              w.Name,
		"vintage":           w.Vintage,
		"grapes":            w.Grapes,
		"type":              w.Type,
		"drink_from":        w.DrinkFrom,
		"drink_before":      w.DrinkBefore,
		"alcohol":           w.Alcohol,
		"geographic_info":   w.GeographicInfo,
		"quality_signature": w.QualitySignature,
	}).Scan(&id)
	return id, mapErr(err)
}

// addToEntry upserts on the cellar_key unique constraint, so concurrent
// first-time adds of one key converge on a single row.
func addToEntry(ctx context.Context, tx pgx.Tx, ownerID int64, key model.BottleKey, qty int) (model.CellarEntry, error) {
	const q = `
INSERT INTO cellar (owner_id, wine_id, storage_unit, bottle_size, quantity)
VALUES (@owner_id, @wine_id, @storage_unit, @bottle_size, @quantity)
ON CONFLICT (owner_id, wine_id, storage_unit, bottle_size)
DO UPDATE SET quantity = cellar.quantity + EXCLUDED.quantity
RETURNING id, quantity`

	e := model.CellarEntry{
		OwnerID:    ownerID,
		WineID:     key.WineID,
		StorageID:  key.StorageID,
		BottleSize: key.BottleSize,
	}
	err := tx.QueryRow(ctx, q, pgx.NamedArgs{
		"owner_id":     ownerID,
		"wine_id":      key.WineID,
		"storage_unit": key.StorageID,
		"bottle_size":  key.BottleSize,
		"quantity":     qty,
	}).Scan(&e.ID, &e.Quantity)
	if err != nil {
		return model.CellarEntry{}, mapErr(err)
	}
	return e, nil
}

// subtract relies on CHECK (quantity >= 0): an over-withdrawal aborts the
// statement and the caller's transaction leaves the row untouched.
func subtract(ctx context.Context, tx pgx.Tx, ownerID int64, key model.BottleKey, qty int) (int, error) {
	const upd = `
UPDATE cellar SET quantity=quantity-$5
WHERE owner_id=$1 AND wine_id=$2 AND storage_unit=$3 AND bottle_size=$4
RETURNING id, quantity`
	const del = `DELETE FROM cellar WHERE id=$1`

	var (
		id        int64
		remaining int
	)
	err := tx.QueryRow(ctx, upd, ownerID, key.WineID, key.StorageID, key.BottleSize, qty).Scan(&id, &remaining)
	if err != nil {
		if isCheckViolation(err) {
			return 0, fmt.Errorf("cannot take %d bottles: %w", qty, errs.ErrInsufficientQuantity)
		}
		return 0, fmt.Errorf("cellar entry: %w", mapErr(err))
	}
	if remaining == 0 {
		if _, err = tx.Exec(ctx, del, id); err != nil {
			return 0, err
		}
	}
	return remaining, nil
}

const stockSelect = `
SELECT c.id, c.bottle_size, c.quantity,
       w.id, w.name, w.vintage, COALESCE(w.grapes, ''), COALESCE(w.type, ''),
       w.drink_from, w.drink_before, w.alcohol,
       COALESCE(w.geographic_info, ''), COALESCE(w.quality_signature, ''),
       s.id, s.owner_id, s.location, s.description
FROM cellar c
JOIN wines w ON w.id = c.wine_id
JOIN storages s ON s.id = c.storage_unit
WHERE c.owner_id=@owner_id AND c.quantity > 0`

// Stock lists the owner's bottles, optionally only those in one storage unit.
func (r *CellarRepo) Stock(ctx context.Context, ownerID int64, storageID *int64) ([]model.StockItem, error) {
	const q = stockSelect + `
  AND (@storage_id::bigint IS NULL OR c.storage_unit=@storage_id)
ORDER BY s.id, w.name, w.vintage, c.bottle_size`
	return r.queryStock(ctx, q, pgx.NamedArgs{"owner_id": ownerID, "storage_id": storageID})
}

// Drinkable lists the owner's bottles with drink_from <= year <= drink_before.
func (r *CellarRepo) Drinkable(ctx context.Context, ownerID int64, year int) ([]model.StockItem, error) {
	const q = stockSelect + `
  AND w.drink_from <= @year AND w.drink_before >= @year
ORDER BY w.drink_before, w.name, w.vintage`
	return r.queryStock(ctx, q, pgx.NamedArgs{"owner_id": ownerID, "year": year})
}

func (r *CellarRepo) queryStock(ctx context.Context, q string, args pgx.NamedArgs) ([]model.StockItem, error) {
	rows, err := r.db.Pool.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StockItem
	for rows.Next() {
		var it model.StockItem
		w, s := &it.Wine, &it.Storage
		if err = rows.Scan(
			&it.EntryID, &it.BottleSize, &it.Quantity,
			&w.ID, &w.Name, &w.Vintage, &w.Grapes, &w.Type,
			&w.DrinkFrom, &w.DrinkBefore, &w.Alcohol,
			&w.GeographicInfo, &w.QualitySignature,
			&s.ID, &s.OwnerID, &s.Location, &s.Description,
		); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
