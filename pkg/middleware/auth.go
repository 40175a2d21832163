// Package middleware provides the request gate: token verification and
// role checks applied in front of protected handlers.
package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/lsec-edu/microlearn/pkg/auth"
	"github.com/lsec-edu/microlearn/pkg/contextkeys"
	"github.com/lsec-edu/microlearn/pkg/httputil"
	"github.com/lsec-edu/microlearn/pkg/observability"
	"github.com/lsec-edu/microlearn/pkg/roles"
	"github.com/lsec-edu/microlearn/pkg/users"
)

// Client-facing gate messages. The web client matches on these strings.
const (
	MsgNoToken      = "No se proporcionó token"
	MsgUnauthorized = "No autorizado"
	MsgUserNotFound = "Ningún usuario encontrado"
)

// Gate verifies bearer tokens and role membership. Token validity is
// always decided before role membership: an expired token on an
// admin-only route yields 401, never 403.
type Gate struct {
	issuer  *auth.TokenIssuer
	users   *users.Store
	roles   *roles.Store
	metrics *observability.Metrics
}

// NewGate creates a new access control gate. metrics may be nil when
// instrumentation is disabled.
func NewGate(issuer *auth.TokenIssuer, userStore *users.Store, roleStore *roles.Store, metrics *observability.Metrics) *Gate {
	return &Gate{issuer: issuer, users: userStore, roles: roleStore, metrics: metrics}
}

func (g *Gate) countRejection(reason string) {
	if g.metrics != nil {
		g.metrics.TokenRejectedTotal.WithLabelValues(reason).Inc()
	}
}

// tokenFromRequest extracts the bearer token. Both the Authorization
// header (with or without the Bearer prefix) and the legacy auth-token
// header are accepted.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.Header.Get("auth-token")
}

// VerifyToken rejects requests without a valid token and stores the
// authenticated user ID in the request context. A missing token is a
// distinct failure from an invalid one.
func (g *Gate) VerifyToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			g.countRejection("missing")
			httputil.WriteForbidden(w, MsgNoToken)
			return
		}

		userID, err := g.issuer.Verify(token)
		if err != nil {
			g.countRejection("invalid")
			httputil.WriteUnauthorized(w, MsgUnauthorized)
			return
		}

		// The principal can disappear while its token is still live.
		if _, err := g.users.GetByID(r.Context(), userID); err != nil {
			if errors.Is(err, users.ErrNotFound) {
				g.countRejection("unknown_user")
				httputil.WriteNotFoundError(w, MsgUserNotFound)
				return
			}
			httputil.WriteInternalError(w, err)
			return
		}

		uid := strconv.FormatInt(userID, 10)
		if c := contextkeys.GetUserIDCarrier(r.Context()); c != nil {
			c.ID = uid
		}
		ctx := contextkeys.WithUserID(r.Context(), uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects requests whose authenticated user does not hold
// the named role. It must run behind VerifyToken; role names are
// re-fetched per request so a revoked role takes effect immediately.
func (g *Gate) RequireRole(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r)
			if !ok {
				httputil.WriteForbidden(w, MsgNoToken)
				return
			}

			names, err := g.roles.NamesForUser(r.Context(), userID)
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}

			for _, n := range names {
				if n == name {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.WriteForbidden(w, "Requiere rol de "+roles.Label(name))
		})
	}
}

// UserIDFromContext returns the authenticated user ID set by VerifyToken
func UserIDFromContext(r *http.Request) (int64, bool) {
	s := contextkeys.GetUserID(r.Context())
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
