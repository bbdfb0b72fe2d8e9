package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/and161185/winecellar/internal/errs"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the access token lifetime used when none is configured.
const DefaultTTL = 15 * time.Minute

const clockSkew = 30 * time.Second

// Claims are the signed contents of an access token. Subject is the username.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// Codec issues and verifies HMAC-signed JWTs with a pinned algorithm.
type Codec struct {
	key    []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec validates the key and algorithm (HS256, HS384 or HS512).
func NewCodec(key []byte, alg string, defaultTTL time.Duration) (*Codec, error) {
	if len(key) == 0 {
		return nil, errors.New("empty signing key")
	}
	var m jwt.SigningMethod
	switch alg {
	case "", jwt.SigningMethodHS256.Alg():
		m = jwt.SigningMethodHS256
	case jwt.SigningMethodHS384.Alg():
		m = jwt.SigningMethodHS384
	case jwt.SigningMethodHS512.Alg():
		m = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Codec{key: key, method: m, ttl: defaultTTL, now: time.Now}, nil
}

// Issue signs a token for username with the given scopes. ttl <= 0 uses the codec default.
func (c *Codec) Issue(username string, scopes []string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()
	exp := now.Add(ttl)
	if scopes == nil {
		scopes = []string{}
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Scopes: scopes,
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.key)
	return signed, exp, err
}

// Decode verifies signature, algorithm and expiry. Every failure is reported
// as ErrUnauthorized without detail.
func (c *Codec) Decode(token string) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, errs.ErrUnauthorized
		}
		return c.key, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !tok.Valid || claims.Subject == "" {
		return nil, errs.ErrUnauthorized
	}
	return &claims, nil
}
