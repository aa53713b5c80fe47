package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goPortal/guard"
	"github.com/MrEthical07/goPortal/session"
)

type sessionContextKey struct{}

// SessionFromContext returns the session injected by a guard.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return s, ok && s != nil
}

// Guard enforces route for every request it wraps.
func Guard(loader Loader, route guard.Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			serve(w, r, next, loader, func(s *session.Session) guard.Decision {
				return guard.Decide(route, s)
			})
		})
	}
}

// Routes enforces the portal route table by request path. Paths outside the
// table pass through.
func Routes(loader Loader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			serve(w, r, next, loader, func(s *session.Session) guard.Decision {
				return guard.DecidePath(r.URL.Path, s)
			})
		})
	}
}

func serve(w http.ResponseWriter, r *http.Request, next http.Handler, loader Loader, decide func(*session.Session) guard.Decision) {
	var s *session.Session
	if loader != nil {
		s = loader(r)
	}

	d := decide(s)
	if !d.Allow {
		http.Redirect(w, r, d.Redirect, http.StatusFound)
		return
	}
	if s != nil {
		r = r.WithContext(context.WithValue(r.Context(), sessionContextKey{}, s))
	}
	next.ServeHTTP(w, r)
}
