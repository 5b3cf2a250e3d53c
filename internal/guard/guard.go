// Package guard decides whether a request may reach a privileged endpoint.
package guard

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"community-portal/internal/model"
	"community-portal/internal/repository"
)

// Request headers read by the guards.
const (
	HeaderAdminToken = "X-Admin-Token"
	HeaderUserNick   = "X-User-Nick"
)

// ErrForbidden is returned when the caller is not allowed through.
var ErrForbidden = errors.New("forbidden")

// Guard authorizes a request. A nil error lets it through.
type Guard interface {
	Authorize(r *http.Request) error
}

// StaticToken compares X-Admin-Token with a shared secret.
// An empty secret rejects every request.
type StaticToken struct {
	token []byte
}

// NewStaticToken creates a StaticToken guard.
func NewStaticToken(token string) *StaticToken {
	return &StaticToken{token: []byte(token)}
}

// Authorize implements Guard.
func (g *StaticToken) Authorize(r *http.Request) error {
	if len(g.token) == 0 {
		return ErrForbidden
	}
	got := []byte(r.Header.Get(HeaderAdminToken))
	if subtle.ConstantTimeCompare(got, g.token) != 1 {
		return ErrForbidden
	}
	return nil
}

// RoleLookup returns the stored role of a nick or repository.ErrUserNotFound.
type RoleLookup interface {
	RoleByNick(ctx context.Context, nick string) (string, error)
}

// DirectoryRole lets through callers whose directory role is in an allow-list.
type DirectoryRole struct {
	lookup  RoleLookup
	allowed []string
}

// NewDirectoryRole creates a DirectoryRole guard. Allowed roles are compared
// trimmed and lower-cased.
func NewDirectoryRole(lookup RoleLookup, allowed []string) *DirectoryRole {
	normalized := make([]string, 0, len(allowed))
	for _, role := range allowed {
		if role = model.NormalizeRole(role); role != "" {
			normalized = append(normalized, role)
		}
	}
	return &DirectoryRole{lookup: lookup, allowed: normalized}
}

// Check reports whether nick may edit and returns its role.
// Unknown nicks get role "user" and ok false.
func (g *DirectoryRole) Check(ctx context.Context, nick string) (role string, ok bool, err error) {
	nick = strings.TrimSpace(nick)
	if nick == "" {
		return model.RoleUser, false, nil
	}

	role, err = g.lookup.RoleByNick(ctx, nick)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.RoleUser, false, nil
		}
		return "", false, fmt.Errorf("failed to look up role: %w", err)
	}

	role = model.NormalizeRole(role)
	return role, slices.Contains(g.allowed, role), nil
}

// Authorize implements Guard using X-User-Nick.
func (g *DirectoryRole) Authorize(r *http.Request) error {
	_, ok, err := g.Check(r.Context(), r.Header.Get(HeaderUserNick))
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// Middleware rejects requests g does not authorize: 403 for ErrForbidden and
// 500 with the error text for lookup failures.
func Middleware(g Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := g.Authorize(r)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			if errors.Is(err, ErrForbidden) {
				log.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Msg("Unauthorized attempt on guarded endpoint")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			log.Error().Err(err).Str("path", r.URL.Path).Msg("Guard check failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		})
	}
}
