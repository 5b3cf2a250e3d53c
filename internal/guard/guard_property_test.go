// Property-based tests for the guards.
package guard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"community-portal/internal/repository"
)

type roleMap map[string]string

func (m roleMap) RoleByNick(_ context.Context, nick string) (string, error) {
	role, ok := m[nick]
	if !ok {
		return "", repository.ErrUserNotFound
	}
	return role, nil
}

type brokenLookup struct{}

func (brokenLookup) RoleByNick(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func requestWith(header, value string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/rollover", nil)
	if value != "" {
		r.Header.Set(header, value)
	}
	return r
}

// TestStaticTokenProperty: a request passes if and only if its token equals
// the configured non-empty secret.
func TestStaticTokenProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		secret := rapid.StringMatching(`[a-zA-Z0-9]{0,24}`).Draw(t, "secret")
		sent := rapid.OneOf(
			rapid.Just(secret),
			rapid.StringMatching(`[a-zA-Z0-9]{0,24}`),
		).Draw(t, "sent")

		err := NewStaticToken(secret).Authorize(requestWith(HeaderAdminToken, sent))

		allowed := secret != "" && sent == secret
		if allowed && err != nil {
			t.Fatalf("token %q rejected with secret %q: %v", sent, secret, err)
		}
		if !allowed && !errors.Is(err, ErrForbidden) {
			t.Fatalf("token %q accepted with secret %q", sent, secret)
		}
	})
}

// TestDirectoryRoleCaseInsensitiveProperty: any casing and padding of an
// allowed role is accepted; every other role is rejected.
func TestDirectoryRoleCaseInsensitiveProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.SampledFrom([]string{"admin", "creator", "moderator", "user"}).Draw(t, "role")
		upper := rapid.Bool().Draw(t, "upper")
		pad := rapid.Bool().Draw(t, "pad")

		stored := base
		if upper {
			stored = strings.ToUpper(stored)
		}
		if pad {
			stored = "  " + stored + " "
		}

		g := NewDirectoryRole(roleMap{"Anna_Petrova": stored}, []string{"Admin", "creator"})
		err := g.Authorize(requestWith(HeaderUserNick, "Anna_Petrova"))

		allowed := base == "admin" || base == "creator"
		if allowed && err != nil {
			t.Fatalf("role %q rejected: %v", stored, err)
		}
		if !allowed && !errors.Is(err, ErrForbidden) {
			t.Fatalf("role %q accepted", stored)
		}
	})
}

func TestStaticToken_FailClosed(t *testing.T) {
	g := NewStaticToken("")
	assert.ErrorIs(t, g.Authorize(requestWith(HeaderAdminToken, "")), ErrForbidden)
	assert.ErrorIs(t, g.Authorize(requestWith(HeaderAdminToken, "anything")), ErrForbidden)
}

func TestDirectoryRole_Check(t *testing.T) {
	g := NewDirectoryRole(roleMap{"Anna_Petrova": "Creator", "Boris_Ivanov": "user"}, []string{"admin", "creator"})
	ctx := context.Background()

	role, ok, err := g.Check(ctx, " Anna_Petrova ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "creator", role)

	role, ok, err = g.Check(ctx, "Boris_Ivanov")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "user", role)

	role, ok, err = g.Check(ctx, "No_Body")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "user", role)

	_, ok, err = g.Check(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		guard  Guard
		req    *http.Request
		status int
	}{
		{"allowed", NewStaticToken("s3cret"), requestWith(HeaderAdminToken, "s3cret"), http.StatusNoContent},
		{"wrong token", NewStaticToken("s3cret"), requestWith(HeaderAdminToken, "nope"), http.StatusForbidden},
		{"missing nick", NewDirectoryRole(roleMap{}, []string{"admin"}), requestWith(HeaderUserNick, ""), http.StatusForbidden},
		{"lookup failure", NewDirectoryRole(brokenLookup{}, []string{"admin"}), requestWith(HeaderUserNick, "Anna_Petrova"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Middleware(tt.guard)(next).ServeHTTP(rec, tt.req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
