package repository

import (
	"context"

	"github.com/and161185/winecellar/internal/model"
)

// StorageRepository manages storage units scoped to their owner.
type StorageRepository interface {
	// Create inserts a storage unit and fills in its ID.
	Create(ctx context.Context, s *model.Storage) error
	// ListByOwner returns the owner's storage units ordered by ID.
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Storage, error)
	// Delete removes an empty storage unit owned by ownerID.
	Delete(ctx context.Context, ownerID, storageID int64) error
}

// CellarRepository manages bottle quantities and their stock projections.
type CellarRepository interface {
	// Add upserts the wine and adds bottles to the matching cellar entry.
	Add(ctx context.Context, ownerID int64, req model.AddBottles) (model.CellarEntry, error)
	// Consume subtracts bottles, deleting the entry when it reaches zero,
	// and records the optional rating in the same transaction.
	Consume(ctx context.Context, ownerID int64, req model.Consume) (remaining int, rating *model.Rating, err error)
	// Transfer moves bottles between two storage units of the owner.
	Transfer(ctx context.Context, ownerID int64, req model.Transfer) (model.CellarEntry, error)
	// Stock lists in-stock bottles, optionally restricted to one storage unit.
	Stock(ctx context.Context, ownerID int64, storageID *int64) ([]model.StockItem, error)
	// Drinkable lists in-stock bottles whose drinking window contains year.
	Drinkable(ctx context.Context, ownerID int64, year int) ([]model.StockItem, error)
}

// RatingRepository manages tasting notes.
type RatingRepository interface {
	// Create inserts a rating by raterID.
	Create(ctx context.Context, raterID int64, r model.NewRating) (*model.Rating, error)
	// Delete removes a rating only if raterID wrote it.
	Delete(ctx context.Context, raterID, ratingID int64) error
	// ListByWine returns ratings of a wine, optionally only those of raterID.
	ListByWine(ctx context.Context, wineID int64, raterID *int64) ([]model.Rating, error)
	// ListByRater returns all ratings written by raterID.
	ListByRater(ctx context.Context, raterID int64) ([]model.Rating, error)
}
