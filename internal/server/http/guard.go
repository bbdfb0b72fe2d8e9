package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/and161185/winecellar/internal/auth"
	"github.com/and161185/winecellar/internal/errs"
	"github.com/and161185/winecellar/internal/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// authCookie carries "Bearer <token>" for browser clients.
const authCookie = "Authorization"

// Guard authorizes requests: decode token, resolve owner, check scopes and,
// for RequireActive, check that the owner is enabled.
type Guard struct {
	auth service.AuthService
	log  *zap.Logger
}

// NewGuard constructs a Guard.
func NewGuard(a service.AuthService, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{auth: a, log: log}
}

// bearerToken extracts the token from the Authorization header or cookie.
func bearerToken(r *http.Request) (string, bool) {
	raw := r.Header.Get("Authorization")
	if raw == "" {
		if c, err := r.Cookie(authCookie); err == nil {
			raw = c.Value
		}
	}
	const prefix = "bearer "
	if len(raw) < len(prefix) || !strings.EqualFold(raw[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(raw[len(prefix):])
	return tok, tok != ""
}

// Require admits requests whose token carries every scope in scopes.
func (g *Guard) Require(scopes ...auth.Scope) mux.MiddlewareFunc {
	return g.middleware(false, scopes)
}

// RequireActive is Require plus a check that the owner is enabled.
func (g *Guard) RequireActive(scopes ...auth.Scope) mux.MiddlewareFunc {
	return g.middleware(true, scopes)
}

func (g *Guard) middleware(active bool, scopes []auth.Scope) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w, msgBadCredentials, scopes)
				return
			}
			u, claims, err := g.auth.CurrentUser(r.Context(), tok, scopes)
			switch {
			case errors.Is(err, errs.ErrForbidden):
				writeUnauthorized(w, msgForbidden, scopes)
				return
			case errors.Is(err, errs.ErrUnauthorized):
				writeUnauthorized(w, msgBadCredentials, scopes)
				return
			case err != nil:
				g.log.Error("resolve user", zap.Error(err), zap.String("request_id", RequestIDFromCtx(r.Context())))
				writeDetail(w, http.StatusInternalServerError, "internal")
				return
			}
			if active && !u.Enabled {
				writeDetail(w, http.StatusBadRequest, msgInactive)
				return
			}
			if claims.ExpiresAt != nil {
				w.Header().Set("Token-Exp", strconv.FormatInt(claims.ExpiresAt.Unix(), 10))
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u, claims)))
		})
	}
}
