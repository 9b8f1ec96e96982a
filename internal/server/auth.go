package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"dmchat/internal/storage"
	"dmchat/internal/token"
)

type ctxKey int

const (
	identityKey ctxKey = iota
	validatedKey
)

func withIdentity(ctx context.Context, u storage.User) context.Context {
	return context.WithValue(ctx, identityKey, u)
}

// identityFrom returns the identity the authentication middleware resolved
// for this request
func identityFrom(ctx context.Context) (storage.User, bool) {
	u, ok := ctx.Value(identityKey).(storage.User)
	return u, ok
}

// bearerToken extracts the access token from the Authorization header, or
// from the "token" query parameter for socket upgrades where browsers cannot
// set headers
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if raw, found := strings.CutPrefix(auth, "Bearer "); found && raw != "" {
		return raw
	}

	return r.URL.Query().Get("token")
}

// requireAuth gates every protected endpoint. It verifies the bearer token,
// resolves the identity through the cache with a database fallback, and
// injects it into the request context. Any failure short-circuits with 401
// (or 500 for collaborator failures); the wrapped handler never runs.
func (h *handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeMessage(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		userID, err := h.tokens.Verify(raw)
		if err != nil {
			if errors.Is(err, token.ErrExpired) {
				writeMessage(w, http.StatusUnauthorized, "Token expired")
				return
			}
			writeMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		identity, ok := h.cache.Get(userID)
		if !ok {
			identity, err = h.store.UserByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, storage.ErrUserNotExist) {
					writeMessage(w, http.StatusUnauthorized, "Unknown user")
					return
				}
				writeInternal(h.logger, w, err)
				return
			}
			h.cache.Store(identity)
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}
