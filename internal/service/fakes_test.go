package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/and161185/winecellar/internal/errs"
	"github.com/and161185/winecellar/internal/limiter"
	"github.com/and161185/winecellar/internal/model"
	"github.com/and161185/winecellar/internal/repository"
)

type fakeUsers struct {
	mu     sync.Mutex
	byName map[string]*model.User
	nextID int64

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.byName == nil {
		f.byName = map[string]*model.User{}
	}
	if _, exists := f.byName[u.Username]; exists {
		return errs.ErrAlreadyExists
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now()
	cpy := *u
	f.byName[u.Username] = &cpy
	return nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) List(context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.byName))
	for _, u := range f.byName {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) Update(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byName[u.Username]
	if !ok || cur.ID != u.ID {
		return errs.ErrNotFound
	}
	c := *u
	f.byName[u.Username] = &c
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[username]; !ok {
		return errs.ErrNotFound
	}
	delete(f.byName, username)
	return nil
}

func (f *fakeUsers) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.byName)), nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

// memCellar is an in-memory cellar with the same quantity rules as the
// Postgres repositories.
type memCellar struct {
	mu       sync.Mutex
	storages map[int64]model.Storage
	wines    map[int64]model.Wine
	entries  map[int64]model.CellarEntry
	ratings  map[int64]model.Rating
	seq      int64
}

var (
	_ repository.StorageRepository = (*memCellar)(nil)
	_ repository.CellarRepository  = (*memCellar)(nil)
)

func newMemCellar() *memCellar {
	return &memCellar{
		storages: map[int64]model.Storage{},
		wines:    map[int64]model.Wine{},
		entries:  map[int64]model.CellarEntry{},
		ratings:  map[int64]model.Rating{},
	}
}

func (m *memCellar) id() int64 { m.seq++; return m.seq }

func (m *memCellar) Create(_ context.Context, s *model.Storage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	m.storages[s.ID] = *s
	return nil
}

func (m *memCellar) ListByOwner(_ context.Context, ownerID int64) ([]model.Storage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Storage
	for _, s := range m.storages {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memCellar) Delete(_ context.Context, ownerID, storageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.storages[storageID]
	if !ok || s.OwnerID != ownerID {
		return errs.ErrNotFound
	}
	for _, e := range m.entries {
		if e.StorageID == storageID {
			return errs.ErrStorageNotEmpty
		}
	}
	delete(m.storages, storageID)
	return nil
}

func (m *memCellar) ownsStorage(ownerID, storageID int64) bool {
	s, ok := m.storages[storageID]
	return ok && s.OwnerID == ownerID
}

func (m *memCellar) findEntry(ownerID int64, k model.BottleKey) (model.CellarEntry, bool) {
	for _, e := range m.entries {
		if e.OwnerID == ownerID && e.Key() == k {
			return e, true
		}
	}
	return model.CellarEntry{}, false
}

func (m *memCellar) put(ownerID int64, k model.BottleKey, q int) model.CellarEntry {
	e, ok := m.findEntry(ownerID, k)
	if !ok {
		e = model.CellarEntry{ID: m.id(), OwnerID: ownerID, WineID: k.WineID, StorageID: k.StorageID, BottleSize: k.BottleSize}
	}
	e.Quantity += q
	m.entries[e.ID] = e
	return e
}

func (m *memCellar) take(ownerID int64, k model.BottleKey, q int) (int, error) {
	e, ok := m.findEntry(ownerID, k)
	if !ok {
		return 0, errs.ErrNotFound
	}
	if e.Quantity < q {
		return 0, errs.ErrInsufficientQuantity
	}
	e.Quantity -= q
	if e.Quantity == 0 {
		delete(m.entries, e.ID)
	} else {
		m.entries[e.ID] = e
	}
	return e.Quantity, nil
}

func (m *memCellar) Add(_ context.Context, ownerID int64, req model.AddBottles) (model.CellarEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ownsStorage(ownerID, req.StorageID) {
		return model.CellarEntry{}, errs.ErrNotFound
	}
	var wineID int64
	for id, w := range m.wines {
		if w.Name == req.Wine.Name && w.Vintage == req.Wine.Vintage {
			wineID = id
		}
	}
	if wineID == 0 {
		w := req.Wine
		w.ID = m.id()
		m.wines[w.ID] = w
		wineID = w.ID
	}
	return m.put(ownerID, model.BottleKey{WineID: wineID, StorageID: req.StorageID, BottleSize: req.BottleSize}, req.Quantity), nil
}

func (m *memCellar) Consume(_ context.Context, ownerID int64, req model.Consume) (int, *model.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	left, err := m.take(ownerID, req.Key, req.Quantity)
	if err != nil {
		return 0, nil, err
	}
	if req.Rating == nil {
		return left, nil, nil
	}
	rt := model.Rating{ID: m.id(), RaterID: ownerID, WineID: req.Key.WineID, Rating: req.Rating.Rating, DrinkingDate: req.Rating.DrinkingDate, Comment: req.Rating.Comment}
	m.ratings[rt.ID] = rt
	return left, &rt, nil
}

func (m *memCellar) Transfer(_ context.Context, ownerID int64, req model.Transfer) (model.CellarEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ownsStorage(ownerID, req.ToStorageID) {
		return model.CellarEntry{}, errs.ErrNotFound
	}
	from := model.BottleKey{WineID: req.WineID, StorageID: req.FromStorageID, BottleSize: req.BottleSize}
	if _, err := m.take(ownerID, from, req.Quantity); err != nil {
		return model.CellarEntry{}, err
	}
	to := model.BottleKey{WineID: req.WineID, StorageID: req.ToStorageID, BottleSize: req.BottleSize}
	return m.put(ownerID, to, req.Quantity), nil
}

func (m *memCellar) stock(ownerID int64, keep func(model.StockItem) bool) []model.StockItem {
	var out []model.StockItem
	for _, e := range m.entries {
		if e.OwnerID != ownerID {
			continue
		}
		it := model.StockItem{EntryID: e.ID, BottleSize: e.BottleSize, Quantity: e.Quantity, Wine: m.wines[e.WineID], Storage: m.storages[e.StorageID]}
		if keep(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out
}

func (m *memCellar) Stock(_ context.Context, ownerID int64, storageID *int64) ([]model.StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock(ownerID, func(it model.StockItem) bool {
		return storageID == nil || it.Storage.ID == *storageID
	}), nil
}

func (m *memCellar) Drinkable(_ context.Context, ownerID int64, year int) ([]model.StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock(ownerID, func(it model.StockItem) bool {
		w := it.Wine
		return w.DrinkFrom != nil && w.DrinkBefore != nil && *w.DrinkFrom <= year && year <= *w.DrinkBefore
	}), nil
}

// memRatings adapts memCellar to RatingRepository, whose Create and Delete
// signatures differ from StorageRepository's.
type memRatings struct{ *memCellar }

var _ repository.RatingRepository = memRatings{}

func (r memRatings) Create(_ context.Context, raterID int64, nr model.NewRating) (*model.Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wines[nr.WineID]; !ok {
		return nil, errs.ErrNotFound
	}
	rt := model.Rating{ID: r.id(), RaterID: raterID, WineID: nr.WineID, Rating: nr.Rating, DrinkingDate: nr.DrinkingDate, Comment: nr.Comment}
	r.ratings[rt.ID] = rt
	return &rt, nil
}

func (r memRatings) Delete(_ context.Context, raterID, ratingID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.ratings[ratingID]
	if !ok || rt.RaterID != raterID {
		return errs.ErrNotFound
	}
	delete(r.ratings, ratingID)
	return nil
}

func (r memRatings) ListByWine(_ context.Context, wineID int64, raterID *int64) ([]model.Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wines[wineID]; !ok {
		return nil, errs.ErrNotFound
	}
	var out []model.Rating
	for _, rt := range r.ratings {
		if rt.WineID == wineID && (raterID == nil || rt.RaterID == *raterID) {
			out = append(out, rt)
		}
	}
	return out, nil
}

func (r memRatings) ListByRater(_ context.Context, raterID int64) ([]model.Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Rating
	for _, rt := range r.ratings {
		if rt.RaterID == raterID {
			out = append(out, rt)
		}
	}
	return out, nil
}
