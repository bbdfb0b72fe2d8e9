package httpserver

import (
	"context"

	"github.com/and161185/winecellar/internal/auth"
	"github.com/and161185/winecellar/internal/model"
)

type ctxKey string

const (
	userKey      ctxKey = "cellar.user"
	claimsKey    ctxKey = "cellar.claims"
	requestIDKey ctxKey = "cellar.requestID"
)

// WithUser stores the authorized owner and its token claims in context.
func WithUser(ctx context.Context, u *model.User, c *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, userKey, u)
	return context.WithValue(ctx, claimsKey, c)
}

// UserFromCtx fetches the authorized owner from context.
func UserFromCtx(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// ClaimsFromCtx fetches the token claims from context.
func ClaimsFromCtx(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok && c != nil
}

// RequestIDFromCtx returns the request id set by the RequestID middleware.
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
