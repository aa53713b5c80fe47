package middleware

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/goPortal/jwt"
	"github.com/MrEthical07/goPortal/session"
)

// Loader returns the session of the request's caller, or nil for a guest.
type Loader func(*http.Request) *session.Session

// StoreLoader reads the session from store.
func StoreLoader(store *session.Store) Loader {
	return func(r *http.Request) *session.Session {
		if store == nil {
			return nil
		}
		return store.Load(r.Context())
	}
}

// BearerLoader builds a session from the claims of the bearer token. The
// signature is not checked.
func BearerLoader() Loader {
	return func(r *http.Request) *session.Session {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			return nil
		}
		claims, err := jwt.Inspect(token)
		if err != nil {
			return nil
		}
		return &session.Session{
			UserID:      claims.UserID,
			Email:       claims.Email,
			Role:        session.ParseRole(claims.Role),
			AccessToken: token,
		}
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
