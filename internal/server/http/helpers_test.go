package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/and161185/winecellar/internal/auth"
	"github.com/and161185/winecellar/internal/errs"
	"github.com/and161185/winecellar/internal/model"
	"github.com/and161185/winecellar/internal/service"
	"github.com/golang-jwt/jwt/v5"
)

type grant struct {
	user   model.User
	scopes []string
}

// fakeAuth resolves opaque tokens from a map and applies the same scope rules
// as the real service.
type fakeAuth struct {
	mu      sync.Mutex
	tokens  map[string]grant
	loginFn func(username, password string, scopes []string, ip string) (model.Tokens, error)
	deleted []string
	lastIP  string
}

var _ service.AuthService = (*fakeAuth)(nil)

func newFakeAuth() *fakeAuth { return &fakeAuth{tokens: map[string]grant{}} }

func (f *fakeAuth) grant(token string, u model.User, scopes ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = grant{user: u, scopes: scopes}
}

func (f *fakeAuth) Authenticate(context.Context, string, string) (*model.User, error) {
	return nil, errs.ErrUnauthorized
}

func (f *fakeAuth) Login(_ context.Context, username, password string, scopes []string, ip string) (model.Tokens, error) {
	f.mu.Lock()
	f.lastIP = ip
	f.mu.Unlock()
	if f.loginFn != nil {
		return f.loginFn(username, password, scopes, ip)
	}
	return model.Tokens{}, errs.ErrUnauthorized
}

func (f *fakeAuth) ExtendedToken(_ context.Context, username string, scopes []string, days int) (model.Tokens, error) {
	if days < 1 || days > service.MaxExtendedDays {
		return model.Tokens{}, errs.ErrValidation
	}
	return model.Tokens{AccessToken: "ext-" + username, ExpiresAt: time.Now().AddDate(0, 0, days), Scopes: scopes}, nil
}

func (f *fakeAuth) CurrentUser(_ context.Context, token string, required []auth.Scope) (*model.User, *auth.Claims, error) {
	f.mu.Lock()
	g, ok := f.tokens[token]
	f.mu.Unlock()
	if !ok {
		return nil, nil, errs.ErrUnauthorized
	}
	if !g.user.IsAdmin && !auth.HasAll(g.scopes, required...) {
		return nil, nil, errs.ErrForbidden
	}
	u := g.user
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			ExpiresAt: jwt.NewNumericDate(time.Unix(1_900_000_000, 0)),
		},
		Scopes: g.scopes,
	}
	return &u, claims, nil
}

func (f *fakeAuth) CreateUser(_ context.Context, nu model.NewUser) (*model.User, error) {
	if nu.Username == "taken" {
		return nil, errs.ErrAlreadyExists
	}
	return &model.User{ID: 7, Name: nu.Name, Username: nu.Username, Scopes: nu.Scopes, Enabled: nu.Enabled}, nil
}

func (f *fakeAuth) UpdateUser(_ context.Context, username string, upd model.UserUpdate) (*model.User, error) {
	if username == "ghost" {
		return nil, errs.ErrNotFound
	}
	u := &model.User{ID: 3, Username: username, Enabled: true}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	return u, nil
}

func (f *fakeAuth) DeleteUser(_ context.Context, actor *model.User, username string) error {
	if actor != nil && actor.Username == username {
		return errs.ErrValidation
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, username)
	f.mu.Unlock()
	return nil
}

func (f *fakeAuth) ListUsers(context.Context) ([]model.User, error) {
	return []model.User{{ID: 1, Username: "admin", PwdHash: "secret-hash", IsAdmin: true, Enabled: true}}, nil
}

func (f *fakeAuth) GetUser(context.Context, string) (*model.User, error) { return nil, errs.ErrNotFound }

func (f *fakeAuth) Bootstrap(context.Context, service.BootstrapAdmin) (bool, error) { return false, nil }

// fakeCellar records calls and returns canned results.
type fakeCellar struct {
	mu        sync.Mutex
	lastOwner int64
	lastAdd   model.AddBottles
	lastCons  model.Consume
	lastStock *int64
	lastYear  int
	lastRater *int64
	err       error
}

var _ service.CellarService = (*fakeCellar)(nil)

func (f *fakeCellar) seen(owner int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOwner = owner
	return f.err
}

func (f *fakeCellar) AddStorage(_ context.Context, ownerID int64, location, description string) (*model.Storage, error) {
	if err := f.seen(ownerID); err != nil {
		return nil, err
	}
	return &model.Storage{ID: 11, OwnerID: ownerID, Location: location, Description: description}, nil
}

func (f *fakeCellar) DeleteStorage(_ context.Context, ownerID, _ int64) error { return f.seen(ownerID) }

func (f *fakeCellar) ListStorages(_ context.Context, ownerID int64) ([]model.Storage, error) {
	if err := f.seen(ownerID); err != nil {
		return nil, err
	}
	return []model.Storage{{ID: 11, OwnerID: ownerID, Location: "Fridge"}}, nil
}

func (f *fakeCellar) AddBottles(_ context.Context, ownerID int64, req model.AddBottles) (model.CellarEntry, error) {
	if err := f.seen(ownerID); err != nil {
		return model.CellarEntry{}, err
	}
	f.mu.Lock()
	f.lastAdd = req
	f.mu.Unlock()
	return model.CellarEntry{ID: 5, OwnerID: ownerID, WineID: 9, StorageID: req.StorageID, BottleSize: 0.75, Quantity: req.Quantity}, nil
}

func (f *fakeCellar) Consume(_ context.Context, ownerID int64, req model.Consume) (int, *model.Rating, error) {
	if err := f.seen(ownerID); err != nil {
		return 0, nil, err
	}
	f.mu.Lock()
	f.lastCons = req
	f.mu.Unlock()
	var rt *model.Rating
	if req.Rating != nil {
		rt = &model.Rating{ID: 1, RaterID: ownerID, WineID: req.Rating.WineID, Rating: req.Rating.Rating, DrinkingDate: req.Rating.DrinkingDate}
	}
	return 4, rt, nil
}

func (f *fakeCellar) Transfer(_ context.Context, ownerID int64, req model.Transfer) (model.CellarEntry, error) {
	if err := f.seen(ownerID); err != nil {
		return model.CellarEntry{}, err
	}
	return model.CellarEntry{ID: 6, OwnerID: ownerID, WineID: req.WineID, StorageID: req.ToStorageID, BottleSize: req.BottleSize, Quantity: req.Quantity}, nil
}

func (f *fakeCellar) AddRating(_ context.Context, raterID int64, nr model.NewRating) (*model.Rating, error) {
	if err := f.seen(raterID); err != nil {
		return nil, err
	}
	return &model.Rating{ID: 2, RaterID: raterID, WineID: nr.WineID, Rating: nr.Rating, DrinkingDate: nr.DrinkingDate, Comment: nr.Comment}, nil
}

func (f *fakeCellar) DeleteRating(_ context.Context, raterID, _ int64) error { return f.seen(raterID) }

func (f *fakeCellar) WineRatings(_ context.Context, wineID int64, raterID *int64) ([]model.Rating, error) {
	f.mu.Lock()
	f.lastRater = raterID
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []model.Rating{{ID: 2, WineID: wineID, Rating: 91}}, nil
}

func (f *fakeCellar) MyRatings(_ context.Context, raterID int64) ([]model.Rating, error) {
	if err := f.seen(raterID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeCellar) Stock(_ context.Context, ownerID int64, storageID *int64) ([]model.StockItem, error) {
	if err := f.seen(ownerID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.lastStock = storageID
	f.mu.Unlock()
	return []model.StockItem{{EntryID: 5, BottleSize: 0.75, Quantity: 3, Wine: model.Wine{ID: 9, Name: "Barolo", Vintage: 2016}}}, nil
}

func (f *fakeCellar) Drinkable(_ context.Context, ownerID int64, year int) ([]model.StockItem, error) {
	if err := f.seen(ownerID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.lastYear = year
	f.mu.Unlock()
	return []model.StockItem{}, nil
}

var (
	alice = model.User{ID: 42, Name: "Alice", Username: "alice", Enabled: true}
	admin = model.User{ID: 1, Name: "Admin", Username: "admin", IsAdmin: true, Enabled: true}
)

// newTestServer returns a handler with three tokens: "reader" (cellar read
// only), "writer" (cellar read and write) and "root" (admin without scopes).
func newTestServer(t *testing.T, opts ...Option) (http.Handler, *fakeAuth, *fakeCellar) {
	t.Helper()
	fa, fc := newFakeAuth(), &fakeCellar{}
	fa.grant("reader", alice, string(auth.ScopeCellarRead))
	fa.grant("writer", alice, string(auth.ScopeCellarRead), string(auth.ScopeCellarWrite))
	fa.grant("root", admin)
	return New(fa, fc, nil, opts...).Handler(), fa, fc
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postForm(t *testing.T, h http.Handler, path, token, form string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "203.0.113.9:51000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}
