package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/warp/pos-engine/pos"
)

// =============================================================================
// IDENTITY
// =============================================================================

// UserHeader carries the acting user's ID, set by the upstream auth gateway.
const UserHeader = "X-User-ID"

// Principal is the authenticated caller.
type Principal struct {
	UserID   pos.UserID
	Username string
	Role     pos.Role
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored by Identity.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// UserLookup resolves user IDs. *sqlstore.Store satisfies it.
type UserLookup interface {
	GetUser(ctx context.Context, id pos.UserID) (*pos.User, error)
}

// Identity loads the user named by X-User-ID. Missing, unknown and
// inactive users are rejected with 401.
func Identity(users UserLookup, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(UserHeader)
			if id == "" {
				writeKind(w, kindUnauthorized, "missing "+UserHeader+" header")
				return
			}
			u, err := users.GetUser(r.Context(), pos.UserID(id))
			if err != nil {
				if !pos.IsNotFound(err) {
					log.Error().Err(err).Str("user_id", id).Msg("identity lookup failed")
					writeKind(w, pos.KindInternal, "internal server error")
					return
				}
				writeKind(w, kindUnauthorized, "unknown user")
				return
			}
			if !u.Active {
				writeKind(w, kindUnauthorized, "user is inactive")
				return
			}

			ctx := withPrincipal(r.Context(), Principal{UserID: u.ID, Username: u.Username, Role: u.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows callers whose role includes min (admin > manager > cashier).
func RequireRole(min pos.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeKind(w, kindUnauthorized, "not authenticated")
				return
			}
			if !p.Role.AtLeast(min) {
				writeKind(w, kindForbidden, "requires role "+string(min))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// principalKeyFunc keys rate limiting by the authenticated user.
func principalKeyFunc(r *http.Request) string {
	if p, ok := PrincipalFrom(r.Context()); ok {
		return "user:" + string(p.UserID)
	}
	return ""
}

// =============================================================================
// REQUEST LOGGING
// =============================================================================

// RequestLogger logs one line per request once it completes.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// Identity runs further down the chain; capture the principal
			// it attaches by handing it a mutable slot.
			var p Principal
			r = r.WithContext(context.WithValue(r.Context(), principalSlotKey{}, &p))

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := log.Info()
			if status >= http.StatusInternalServerError {
				ev = log.Error()
			} else if status >= http.StatusBadRequest {
				ev = log.Warn()
			}
			ev.Str("request_id", middleware.GetReqID(r.Context())).
				Str("user_id", string(p.UserID)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

type principalSlotKey struct{}

// recordPrincipal copies the principal into the slot RequestLogger reads.
func recordPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slot, ok := r.Context().Value(principalSlotKey{}).(*Principal); ok {
			if p, ok := PrincipalFrom(r.Context()); ok {
				*slot = p
			}
		}
		next.ServeHTTP(w, r)
	})
}
