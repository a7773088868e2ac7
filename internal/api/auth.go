// File path: internal/api/auth.go
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/launchbase/opsgate/internal/common"
	"github.com/launchbase/opsgate/internal/identity"
	"github.com/launchbase/opsgate/internal/sqlite"
)

// TokenResolver maps a bearer token to a principal row.
type TokenResolver interface {
	PrincipalByToken(ctx context.Context, token string) (*sqlite.Principal, error)
}

// authenticate resolves the Authorization bearer token into a principal and
// attaches it to the request context. Missing or unknown credentials end
// the request with 401; a resolver failure is treated the same way, never
// as an authenticated pass-through.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token == "" {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("missing bearer token"))
			return
		}
		row, err := s.resolver.PrincipalByToken(r.Context(), token)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				common.Logger().Warn("auth: token lookup failed", "error", err)
			}
			writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid bearer token"))
			return
		}
		principal := identity.Principal{
			ID:   row.ID,
			Name: row.Name,
			Role: identity.Role(row.Role),
		}
		ctx := identity.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePrincipal fetches the authenticated principal or ends the request.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return identity.Principal{}, false
	}
	return principal, true
}
