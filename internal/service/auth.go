// Package service contains application services for owners, authentication and the cellar.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/and161185/winecellar/internal/auth"
	pkgcrypto "github.com/and161185/winecellar/internal/crypto"
	"github.com/and161185/winecellar/internal/errs"
	"github.com/and161185/winecellar/internal/limiter"
	"github.com/and161185/winecellar/internal/model"
	"github.com/and161185/winecellar/internal/repository"
)

// MaxExtendedDays bounds the lifetime of admin-issued extended tokens.
const MaxExtendedDays = 365

// AuthService defines authentication, authorization and owner management.
type AuthService interface {
	// Authenticate returns the owner when the password matches.
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	// Login applies rate limiting, authenticates and issues a scoped token.
	Login(ctx context.Context, username, password string, scopes []string, ip string) (model.Tokens, error)
	// ExtendedToken issues a long-lived token for another owner.
	ExtendedToken(ctx context.Context, username string, scopes []string, days int) (model.Tokens, error)
	// CurrentUser decodes a token, resolves its owner and checks required scopes.
	CurrentUser(ctx context.Context, token string, required []auth.Scope) (*model.User, *auth.Claims, error)

	CreateUser(ctx context.Context, nu model.NewUser) (*model.User, error)
	UpdateUser(ctx context.Context, username string, upd model.UserUpdate) (*model.User, error)
	DeleteUser(ctx context.Context, actor *model.User, username string) error
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, username string) (*model.User, error)

	// Bootstrap creates the admin owner when no owners exist.
	Bootstrap(ctx context.Context, admin BootstrapAdmin) (bool, error)
}

// BootstrapAdmin describes the first administrator.
type BootstrapAdmin struct {
	Name     string
	Username string
	Password string
}

type AuthServiceImpl struct {
	users repository.UserRepository
	codec *auth.Codec
	lim   limiter.Limiter
}

// NewAuthService constructs AuthService with required dependencies. A nil limiter disables throttling.
func NewAuthService(users repository.UserRepository, codec *auth.Codec, lim limiter.Limiter) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	return &AuthServiceImpl{users: users, codec: codec, lim: lim}
}

// dummyHash is compared against when the username is unknown so both
// failure paths cost one bcrypt verification.
var dummyHash = sync.OnceValue(func() string {
	h, _ := pkgcrypto.HashPassword("cellar-dummy-password")
	return h
})

// Authenticate looks up the owner and verifies the password. Unknown users
// and wrong passwords both yield ErrUnauthorized.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		pkgcrypto.VerifyPassword(password, dummyHash())
		return nil, errs.ErrUnauthorized
	case err != nil:
		return nil, err
	}
	if err := pkgcrypto.CheckHash(u.PwdHash); err != nil {
		return nil, fmt.Errorf("stored hash for %q: %w", username, err)
	}
	if !pkgcrypto.VerifyPassword(password, u.PwdHash) {
		return nil, errs.ErrUnauthorized
	}
	return u, nil
}

// Login authenticates with rate limiting by (username, ip) and issues a token
// carrying the requested scopes the owner may receive.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string, scopes []string, ip string) (model.Tokens, error) {
	scopes, err := requestedScopes(scopes)
	if err != nil {
		return model.Tokens{}, err
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Tokens{}, err
	}
	if !allowed {
		return model.Tokens{}, errs.ErrRateLimited
	}

	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		if !errors.Is(err, errs.ErrUnauthorized) {
			return model.Tokens{}, err
		}
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return model.Tokens{}, errs.ErrRateLimited
		}
		return model.Tokens{}, errs.ErrUnauthorized
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, username, ipHash)

	if !u.Enabled {
		return model.Tokens{}, errs.ErrInactive
	}
	return s.issue(u, scopes, 0)
}

// ExtendedToken issues a token valid for days days for an existing owner.
func (s *AuthServiceImpl) ExtendedToken(ctx context.Context, username string, scopes []string, days int) (model.Tokens, error) {
	if days < 1 || days > MaxExtendedDays {
		return model.Tokens{}, fmt.Errorf("days_valid must be within 1..%d: %w", MaxExtendedDays, errs.ErrValidation)
	}
	scopes, err := requestedScopes(scopes)
	if err != nil {
		return model.Tokens{}, err
	}
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("user %q: %w", username, err)
	}
	return s.issue(u, scopes, time.Duration(days)*24*time.Hour)
}

// requestedScopes rejects scopes outside the known set and drops duplicates.
func requestedScopes(scopes []string) ([]string, error) {
	parsed, err := auth.ParseScopes(strings.Join(scopes, " "))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(parsed))
	for i, sc := range parsed {
		out[i] = string(sc)
	}
	return out, nil
}

func (s *AuthServiceImpl) issue(u *model.User, requested []string, ttl time.Duration) (model.Tokens, error) {
	granted := auth.Allowed(requested, u.Scopes, u.IsAdmin)
	tok, exp, err := s.codec.Issue(u.Username, granted, ttl)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: tok, ExpiresAt: exp, Scopes: granted}, nil
}

// CurrentUser runs token decoding, owner resolution and the scope check.
// Admins pass every scope check.
func (s *AuthServiceImpl) CurrentUser(ctx context.Context, token string, required []auth.Scope) (*model.User, *auth.Claims, error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.users.GetByUsername(ctx, claims.Subject)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return nil, nil, errs.ErrUnauthorized
	case err != nil:
		return nil, nil, err
	}
	if !u.IsAdmin && !auth.HasAll(claims.Scopes, required...) {
		return nil, nil, errs.ErrForbidden
	}
	return u, claims, nil
}

func normalizeScopes(s string) (string, error) {
	sc, err := auth.ParseScopes(s)
	if err != nil {
		return "", err
	}
	return auth.JoinScopes(sc), nil
}

// CreateUser validates input, hashes the password and stores a new owner.
func (s *AuthServiceImpl) CreateUser(ctx context.Context, nu model.NewUser) (*model.User, error) {
	nu.Username = strings.TrimSpace(nu.Username)
	if nu.Username == "" || nu.Password == "" {
		return nil, fmt.Errorf("username and password are required: %w", errs.ErrValidation)
	}
	scopes, err := normalizeScopes(nu.Scopes)
	if err != nil {
		return nil, err
	}
	hash, err := pkgcrypto.HashPassword(nu.Password)
	if err != nil {
		return nil, fmt.Errorf("password: %v: %w", err, errs.ErrValidation)
	}
	u := &model.User{
		Name:     nu.Name,
		Username: nu.Username,
		PwdHash:  hash,
		Scopes:   scopes,
		IsAdmin:  nu.IsAdmin,
		Enabled:  nu.Enabled,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil, fmt.Errorf("username %q is taken: %w", nu.Username, err)
		}
		return nil, err
	}
	return u, nil
}

// UpdateUser applies the non-nil fields of upd.
func (s *AuthServiceImpl) UpdateUser(ctx context.Context, username string, upd model.UserUpdate) (*model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", username, err)
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Scopes != nil {
		if u.Scopes, err = normalizeScopes(*upd.Scopes); err != nil {
			return nil, err
		}
	}
	if upd.Password != nil {
		if *upd.Password == "" {
			return nil, fmt.Errorf("empty password: %w", errs.ErrValidation)
		}
		if u.PwdHash, err = pkgcrypto.HashPassword(*upd.Password); err != nil {
			return nil, fmt.Errorf("password: %v: %w", err, errs.ErrValidation)
		}
	}
	if upd.IsAdmin != nil {
		u.IsAdmin = *upd.IsAdmin
	}
	if upd.Enabled != nil {
		u.Enabled = *upd.Enabled
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes an owner. Owners cannot delete themselves.
func (s *AuthServiceImpl) DeleteUser(ctx context.Context, actor *model.User, username string) error {
	if actor != nil && actor.Username == username {
		return fmt.Errorf("cannot delete yourself: %w", errs.ErrValidation)
	}
	if err := s.users.Delete(ctx, username); err != nil {
		return fmt.Errorf("user %q: %w", username, err)
	}
	return nil
}

// ListUsers returns all owners.
func (s *AuthServiceImpl) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// GetUser returns one owner by username.
func (s *AuthServiceImpl) GetUser(ctx context.Context, username string) (*model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", username, err)
	}
	return u, nil
}

// Bootstrap creates the admin owner on an empty database.
func (s *AuthServiceImpl) Bootstrap(ctx context.Context, admin BootstrapAdmin) (bool, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if admin.Username == "" || admin.Password == "" {
		return false, errors.New("bootstrap: admin username and password are required on an empty database")
	}
	_, err = s.CreateUser(ctx, model.NewUser{
		Name:     admin.Name,
		Username: admin.Username,
		Password: admin.Password,
		IsAdmin:  true,
		Enabled:  true,
	})
	if err != nil {
		return false, fmt.Errorf("bootstrap: %w", err)
	}
	return true, nil
}
