package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/winecellar/internal/errs"
	"github.com/and161185/winecellar/internal/model"
	"github.com/jackc/pgx/v5"
)

// RatingRepo implements RatingRepository using PostgreSQL.
type RatingRepo struct{ db *DB }

// NewRatingRepo constructs a rating repository.
func NewRatingRepo(db *DB) *RatingRepo { return &RatingRepo{db: db} }

const ratingColumns = `id, rater_id, wine_id, rating, drinking_date, comment`

// rowQuerier is satisfied by both the pool and a transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertRating(ctx context.Context, q rowQuerier, raterID int64, nr model.NewRating) (*model.Rating, error) {
	const ins = `
INSERT INTO ratings (rater_id, wine_id, rating, drinking_date, comment)
VALUES (@rater_id, @wine_id, @rating, @drinking_date, @comment)
RETURNING id`
	rt := &model.Rating{
		RaterID:      raterID,
		WineID:       nr.WineID,
		Rating:       nr.Rating,
		DrinkingDate: nr.DrinkingDate,
		Comment:      nr.Comment,
	}
	err := q.QueryRow(ctx, ins, pgx.NamedArgs{
		"rater_id":      raterID,
		"wine_id":       nr.WineID,
		"rating":        nr.Rating,
		"drinking_date": nr.DrinkingDate,
		"comment":       nr.Comment,
	}).Scan(&rt.ID)
	if err != nil {
		return nil, fmt.Errorf("wine %d: %w", nr.WineID, mapErr(err))
	}
	return rt, nil
}

// Create inserts a rating; an unknown wine yields ErrNotFound.
func (r *RatingRepo) Create(ctx context.Context, raterID int64, nr model.NewRating) (*model.Rating, error) {
	return insertRating(ctx, r.db.Pool, raterID, nr)
}

// Delete removes a rating written by raterID.
func (r *RatingRepo) Delete(ctx context.Context, raterID, ratingID int64) error {
	const q = `DELETE FROM ratings WHERE id=$1 AND rater_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, ratingID, raterID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListByWine returns ratings of wineID, optionally only those by raterID.
func (r *RatingRepo) ListByWine(ctx context.Context, wineID int64, raterID *int64) ([]model.Rating, error) {
	const exists = `SELECT EXISTS (SELECT 1 FROM wines WHERE id=$1)`
	const q = `SELECT ` + ratingColumns + ` FROM ratings
WHERE wine_id=@wine_id AND (@rater_id::bigint IS NULL OR rater_id=@rater_id)
ORDER BY drinking_date DESC, id DESC`

	var ok bool
	if err := r.db.Pool.QueryRow(ctx, exists, wineID).Scan(&ok); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("wine %d: %w", wineID, errs.ErrNotFound)
	}
	return r.list(ctx, q, pgx.NamedArgs{"wine_id": wineID, "rater_id": raterID})
}

// ListByRater returns every rating written by raterID.
func (r *RatingRepo) ListByRater(ctx context.Context, raterID int64) ([]model.Rating, error) {
	const q = `SELECT ` + ratingColumns + ` FROM ratings
WHERE rater_id=@rater_id
ORDER BY drinking_date DESC, id DESC`
	return r.list(ctx, q, pgx.NamedArgs{"rater_id": raterID})
}

func (r *RatingRepo) list(ctx context.Context, q string, args pgx.NamedArgs) ([]model.Rating, error) {
	rows, err := r.db.Pool.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Rating
	for rows.Next() {
		var rt model.Rating
		if err = rows.Scan(&rt.ID, &rt.RaterID, &rt.WineID, &rt.Rating, &rt.DrinkingDate, &rt.Comment); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}
