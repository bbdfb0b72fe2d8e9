// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/winecellar/internal/model"
)

// UserRepository provides CRUD access for owners.
type UserRepository interface {
	// Create inserts a new owner and fills in its ID and CreatedAt.
	Create(ctx context.Context, u *model.User) error
	// GetByUsername loads an owner by exact username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// List returns all owners ordered by ID.
	List(ctx context.Context) ([]model.User, error)
	// Update overwrites mutable columns of the owner identified by u.ID.
	Update(ctx context.Context, u *model.User) error
	// Delete removes the owner with the given username.
	Delete(ctx context.Context, username string) error
	// Count returns the number of owners.
	Count(ctx context.Context) (int64, error)
}
