// Package auth holds the token codec and the scope rules used to gate requests.
package auth

import (
	"fmt"
	"strings"

	"github.com/and161185/winecellar/internal/errs"
)

// Scope is a permission string granted to a user and required by endpoints.
type Scope string

const (
	ScopeUsersRead   Scope = "USERS:READ"
	ScopeUsersWrite  Scope = "USERS:WRITE"
	ScopeCellarRead  Scope = "CELLAR:READ"
	ScopeCellarWrite Scope = "CELLAR:WRITE"
)

// AllScopes lists every known scope in declaration order.
var AllScopes = []Scope{ScopeUsersRead, ScopeUsersWrite, ScopeCellarRead, ScopeCellarWrite}

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	for _, k := range AllScopes {
		if s == k {
			return true
		}
	}
	return false
}

// ParseScopes splits a space-separated scope list, dropping duplicates.
// Unknown scopes yield ErrValidation.
func ParseScopes(s string) ([]Scope, error) {
	fields := strings.Fields(s)
	out := make([]Scope, 0, len(fields))
	seen := make(map[Scope]struct{}, len(fields))
	for _, f := range fields {
		sc := Scope(f)
		if !sc.Valid() {
			return nil, fmt.Errorf("unknown scope %q: %w", f, errs.ErrValidation)
		}
		if _, dup := seen[sc]; dup {
			continue
		}
		seen[sc] = struct{}{}
		out = append(out, sc)
	}
	return out, nil
}

// JoinScopes renders scopes as the space-separated form stored on owners.
func JoinScopes(scopes []Scope) string {
	ss := make([]string, len(scopes))
	for i, s := range scopes {
		ss[i] = string(s)
	}
	return strings.Join(ss, " ")
}

// Allowed returns the requested scopes that the user may receive.
// Admins get requested unchanged; others get the intersection with the
// space-separated granted list, in request order.
func Allowed(requested []string, granted string, isAdmin bool) []string {
	if isAdmin {
		return requested
	}
	g := make(map[string]struct{})
	for _, s := range strings.Fields(granted) {
		g[s] = struct{}{}
	}
	out := make([]string, 0, len(requested))
	for _, s := range requested {
		if _, ok := g[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// HasAll reports whether granted contains every required scope.
func HasAll(granted []string, required ...Scope) bool {
	for _, r := range required {
		found := false
		for _, g := range granted {
			if g == string(r) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
