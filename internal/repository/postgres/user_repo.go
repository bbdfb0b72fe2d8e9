package postgres

import (
	"context"

	"github.com/and161185/winecellar/internal/errs"
	"github.com/and161185/winecellar/internal/model"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs an owner repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, name, username, password, scopes, is_admin, enabled, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Username, &u.PwdHash, &u.Scopes, &u.IsAdmin, &u.Enabled, &u.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// Create inserts a new owner row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO owners (name, username, password, scopes, is_admin, enabled)
VALUES (@name, @username, @password, @scopes, @is_admin, @enabled)
RETURNING id, created_at`
	err := r.db.Pool.QueryRow(ctx, q, pgx.NamedArgs{
		"name":     u.Name,
		"username": u.Username,
		"password": u.PwdHash,
		"scopes":   u.Scopes,
		"is_admin": u.IsAdmin,
		"enabled":  u.Enabled,
	}).Scan(&u.ID, &u.CreatedAt)
	return mapErr(err)
}

// GetByUsername selects an owner by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM owners WHERE username=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, username))
}

// List returns all owners.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM owners ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Update writes name, password, scopes and flags of the owner with u.ID.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	const q = `
UPDATE owners
SET name=@name, password=@password, scopes=@scopes, is_admin=@is_admin, enabled=@enabled
WHERE id=@id`
	tag, err := r.db.Pool.Exec(ctx, q, pgx.NamedArgs{
		"id":       u.ID,
		"name":     u.Name,
		"password": u.PwdHash,
		"scopes":   u.Scopes,
		"is_admin": u.IsAdmin,
		"enabled":  u.Enabled,
	})
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes an owner by username; owned storages, entries and ratings cascade.
func (r *UserRepo) Delete(ctx context.Context, username string) error {
	const q = `DELETE FROM owners WHERE username=$1`
	tag, err := r.db.Pool.Exec(ctx, q, username)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Count returns the number of owners.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM owners`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
