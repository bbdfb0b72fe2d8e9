package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/and161185/winecellar/internal/errs"
	"github.com/and161185/winecellar/internal/model"
	"github.com/and161185/winecellar/internal/repository"
)

const (
	maxLocationLen    = 200
	maxDescriptionLen = 2000
	maxRating         = 100
)

// CellarService covers storage units, bottle movements, ratings and stock views.
// Every operation is scoped to the calling owner.
type CellarService interface {
	AddStorage(ctx context.Context, ownerID int64, location, description string) (*model.Storage, error)
	DeleteStorage(ctx context.Context, ownerID, storageID int64) error
	ListStorages(ctx context.Context, ownerID int64) ([]model.Storage, error)

	AddBottles(ctx context.Context, ownerID int64, req model.AddBottles) (model.CellarEntry, error)
	Consume(ctx context.Context, ownerID int64, req model.Consume) (remaining int, rating *model.Rating, err error)
	Transfer(ctx context.Context, ownerID int64, req model.Transfer) (model.CellarEntry, error)

	AddRating(ctx context.Context, raterID int64, nr model.NewRating) (*model.Rating, error)
	DeleteRating(ctx context.Context, raterID, ratingID int64) error
	WineRatings(ctx context.Context, wineID int64, raterID *int64) ([]model.Rating, error)
	MyRatings(ctx context.Context, raterID int64) ([]model.Rating, error)

	Stock(ctx context.Context, ownerID int64, storageID *int64) ([]model.StockItem, error)
	Drinkable(ctx context.Context, ownerID int64, year int) ([]model.StockItem, error)
}

type CellarServiceImpl struct {
	storages repository.StorageRepository
	cellar   repository.CellarRepository
	ratings  repository.RatingRepository
	now      func() time.Time
}

// NewCellarService constructs CellarService.
func NewCellarService(st repository.StorageRepository, c repository.CellarRepository, r repository.RatingRepository) *CellarServiceImpl {
	return &CellarServiceImpl{storages: st, cellar: c, ratings: r, now: time.Now}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, errs.ErrValidation)...)
}

// AddStorage creates a storage unit owned by ownerID.
func (s *CellarServiceImpl) AddStorage(ctx context.Context, ownerID int64, location, description string) (*model.Storage, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return nil, invalid("location is required")
	case utf8.RuneCountInString(location) > maxLocationLen:
		return nil, invalid("location longer than %d characters", maxLocationLen)
	case utf8.RuneCountInString(description) > maxDescriptionLen:
		return nil, invalid("description longer than %d characters", maxDescriptionLen)
	}
	st := &model.Storage{OwnerID: ownerID, Location: location, Description: description}
	if err := s.storages.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteStorage removes an empty storage unit of ownerID.
func (s *CellarServiceImpl) DeleteStorage(ctx context.Context, ownerID, storageID int64) error {
	if err := s.storages.Delete(ctx, ownerID, storageID); err != nil {
		return fmt.Errorf("storage %d: %w", storageID, err)
	}
	return nil
}

// ListStorages returns the storage units of ownerID.
func (s *CellarServiceImpl) ListStorages(ctx context.Context, ownerID int64) ([]model.Storage, error) {
	return s.storages.ListByOwner(ctx, ownerID)
}

// normalizeSize maps 0 to the default size and rounds to the millilitre
// precision of the bottle_size column. More precise sizes are rejected so
// that one logical size never lands in two rows.
func normalizeSize(size float64) (float64, error) {
	if size == 0 {
		return model.DefaultBottleSize, nil
	}
	r := math.Round(size*1000) / 1000
	if math.Abs(r-size) > 1e-9 {
		return 0, invalid("bottle_size %g has more than 3 decimals", size)
	}
	if r <= 0 || r >= 100 {
		return 0, invalid("bottle_size %g out of range", size)
	}
	return r, nil
}

// AddBottles validates the request and adds bottles to the cellar.
func (s *CellarServiceImpl) AddBottles(ctx context.Context, ownerID int64, req model.AddBottles) (model.CellarEntry, error) {
	if req.Quantity <= 0 {
		return model.CellarEntry{}, invalid("quantity must be positive")
	}
	size, err := normalizeSize(req.BottleSize)
	if err != nil {
		return model.CellarEntry{}, err
	}
	req.BottleSize = size
	w := &req.Wine
	w.Name = strings.TrimSpace(w.Name)
	switch {
	case w.Name == "":
		return model.CellarEntry{}, invalid("wine name is required")
	case w.Vintage < 0:
		return model.CellarEntry{}, invalid("vintage must not be negative")
	case w.DrinkFrom != nil && w.DrinkBefore != nil && *w.DrinkFrom > *w.DrinkBefore:
		return model.CellarEntry{}, invalid("drink_from after drink_before")
	case w.Alcohol != nil && (*w.Alcohol < 0 || *w.Alcohol > 100):
		return model.CellarEntry{}, invalid("alcohol must be within 0..100")
	}
	return s.cellar.Add(ctx, ownerID, req)
}

// Consume takes bottles out of the cellar and records the optional rating.
func (s *CellarServiceImpl) Consume(ctx context.Context, ownerID int64, req model.Consume) (int, *model.Rating, error) {
	if req.Quantity <= 0 {
		return 0, nil, invalid("quantity must be positive")
	}
	size, err := normalizeSize(req.Key.BottleSize)
	if err != nil {
		return 0, nil, err
	}
	req.Key.BottleSize = size
	if req.Rating != nil {
		req.Rating.WineID = req.Key.WineID
		if err := s.prepareRating(req.Rating); err != nil {
			return 0, nil, err
		}
	}
	return s.cellar.Consume(ctx, ownerID, req)
}

// Transfer moves bottles between two storage units of ownerID.
func (s *CellarServiceImpl) Transfer(ctx context.Context, ownerID int64, req model.Transfer) (model.CellarEntry, error) {
	if req.Quantity <= 0 {
		return model.CellarEntry{}, invalid("quantity must be positive")
	}
	if req.FromStorageID == req.ToStorageID {
		return model.CellarEntry{}, invalid("source and target storage are the same")
	}
	size, err := normalizeSize(req.BottleSize)
	if err != nil {
		return model.CellarEntry{}, err
	}
	req.BottleSize = size
	return s.cellar.Transfer(ctx, ownerID, req)
}

func (s *CellarServiceImpl) prepareRating(nr *model.NewRating) error {
	if nr.Rating < 0 || nr.Rating > maxRating {
		return invalid("rating must be within 0..%d", maxRating)
	}
	if nr.DrinkingDate.IsZero() {
		y, m, d := s.now().Date()
		nr.DrinkingDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return nil
}

// AddRating records a tasting note; the drinking date defaults to today.
func (s *CellarServiceImpl) AddRating(ctx context.Context, raterID int64, nr model.NewRating) (*model.Rating, error) {
	if err := s.prepareRating(&nr); err != nil {
		return nil, err
	}
	return s.ratings.Create(ctx, raterID, nr)
}

// DeleteRating removes a rating written by raterID.
func (s *CellarServiceImpl) DeleteRating(ctx context.Context, raterID, ratingID int64) error {
	if err := s.ratings.Delete(ctx, raterID, ratingID); err != nil {
		return fmt.Errorf("rating %d: %w", ratingID, err)
	}
	return nil
}

// WineRatings returns ratings of a wine, optionally only raterID's.
func (s *CellarServiceImpl) WineRatings(ctx context.Context, wineID int64, raterID *int64) ([]model.Rating, error) {
	return s.ratings.ListByWine(ctx, wineID, raterID)
}

// MyRatings returns ratings written by raterID.
func (s *CellarServiceImpl) MyRatings(ctx context.Context, raterID int64) ([]model.Rating, error) {
	return s.ratings.ListByRater(ctx, raterID)
}

// Stock lists in-stock bottles of ownerID.
func (s *CellarServiceImpl) Stock(ctx context.Context, ownerID int64, storageID *int64) ([]model.StockItem, error) {
	return s.cellar.Stock(ctx, ownerID, storageID)
}

// Drinkable lists bottles ready to drink in year; year 0 means the current year.
func (s *CellarServiceImpl) Drinkable(ctx context.Context, ownerID int64, year int) ([]model.StockItem, error) {
	if year == 0 {
		year = s.now().Year()
	}
	return s.cellar.Drinkable(ctx, ownerID, year)
}
