package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/winecellar/internal/errs"
	"github.com/and161185/winecellar/internal/model"
	"github.com/jackc/pgx/v5"
)

// StorageRepo implements StorageRepository using PostgreSQL.
type StorageRepo struct{ db *DB }

// NewStorageRepo constructs a storage repository.
func NewStorageRepo(db *DB) *StorageRepo { return &StorageRepo{db: db} }

// Create inserts a storage unit.
func (r *StorageRepo) Create(ctx context.Context, s *model.Storage) error {
	const q = `
INSERT INTO storages (owner_id, location, description)
VALUES (@owner_id, @location, @description)
RETURNING id`
	err := r.db.Pool.QueryRow(ctx, q, pgx.NamedArgs{
		"owner_id":    s.OwnerID,
		"location":    s.Location,
		"description": s.Description,
	}).Scan(&s.ID)
	return mapErr(err)
}

// ListByOwner returns storage units of one owner.
func (r *StorageRepo) ListByOwner(ctx context.Context, ownerID int64) ([]model.Storage, error) {
	const q = `
SELECT id, owner_id, location, description
FROM storages WHERE owner_id=$1
ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Storage
	for rows.Next() {
		var s model.Storage
		if err = rows.Scan(&s.ID, &s.OwnerID, &s.Location, &s.Description); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a storage unit after checking, under a row lock, that no
// cellar entry references it.
func (r *StorageRepo) Delete(ctx context.Context, ownerID, storageID int64) error {
	const lock = `SELECT id FROM storages WHERE id=$1 AND owner_id=$2 FOR UPDATE`
	const cnt = `SELECT count(*) FROM cellar WHERE storage_unit=$1`
	const del = `DELETE FROM storages WHERE id=$1`

	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		var id int64
		if err := tx.QueryRow(ctx, lock, storageID, ownerID).Scan(&id); err != nil {
			return mapErr(err)
		}
		var n int64
		if err := tx.QueryRow(ctx, cnt, storageID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%d cellar entries remain: %w", n, errs.ErrStorageNotEmpty)
		}
		_, err := tx.Exec(ctx, del, storageID)
		return mapErr(err)
	})
}
