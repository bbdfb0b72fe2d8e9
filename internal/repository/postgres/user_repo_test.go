package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/winecellar/internal/errs"
	"github.com/and161185/winecellar/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var ownerCols = []string{"id", "name", "username", "password", "scopes", "is_admin", "enabled", "created_at"}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	now := time.Now()
	u := &model.User{Name: "Ann", Username: "ann", PwdHash: "h", Scopes: "CELLAR:READ", Enabled: true}

	mock.ExpectQuery(`INSERT INTO owners \(name, username, password, scopes, is_admin, enabled\)`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))
	require.NoError(t, r.Create(ctx, u))
	require.Equal(t, int64(7), u.ID)
	require.Equal(t, now, u.CreatedAt)

	mock.ExpectQuery(`INSERT INTO owners`).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	err := r.Create(ctx, u)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByUsername(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`FROM owners WHERE username=\$1`).
		WithArgs("u2").
		WillReturnRows(pgxmock.NewRows(ownerCols).
			AddRow(int64(2), "", "u2", "h", "", true, true, time.Now()))
	u, err := r.GetByUsername(ctx, "u2")
	require.NoError(t, err)
	require.Equal(t, "u2", u.Username)
	require.True(t, u.IsAdmin)

	mock.ExpectQuery(`FROM owners WHERE username=\$1`).
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByUsername(ctx, "nobody")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	mock.ExpectQuery(`FROM owners ORDER BY id`).
		WillReturnRows(pgxmock.NewRows(ownerCols).
			AddRow(int64(1), "Admin", "admin", "h", "", true, true, time.Now()).
			AddRow(int64(2), "Bob", "bob", "h", "CELLAR:READ", false, false, time.Now()))
	us, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, us, 2)
	require.Equal(t, "bob", us[1].Username)
	require.False(t, us[1].Enabled)
}

func TestUserRepo_Update(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	u := &model.User{ID: 4, Name: "N", PwdHash: "h", Scopes: "USERS:READ", Enabled: true}

	mock.ExpectExec(`UPDATE owners SET name=`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Update(ctx, u))

	mock.ExpectExec(`UPDATE owners SET name=`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.Update(ctx, u), errs.ErrNotFound)
}

func TestUserRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM owners WHERE username=\$1`).
		WithArgs("bob").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, "bob"))

	mock.ExpectExec(`DELETE FROM owners WHERE username=\$1`).
		WithArgs("bob").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, "bob"), errs.ErrNotFound)
}

func TestUserRepo_Count(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM owners`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	n, err := r.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}
