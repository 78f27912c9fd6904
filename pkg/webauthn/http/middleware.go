// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier validates a bearer token and returns its claims.
// *webauthn.DefaultJWTGenerator satisfies this interface.
type TokenVerifier interface {
	VerifyToken(tokenString string) (jwt.MapClaims, error)
}

type contextKey string

const usernameContextKey contextKey = "webauthn.username"

// UsernameFromContext returns the authenticated username stored by
// RequireAuth, if any.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameContextKey).(string)
	return username, ok && username != ""
}

// ContextWithUsername returns a context carrying the authenticated username.
// Exported for tests and for callers that authenticate by other means.
func ContextWithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameContextKey, username)
}

// RequireAuth returns a middleware that rejects requests without a valid
// bearer token. The username claim from the token is placed on the request
// context for downstream handlers.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				unauthorized(w)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				unauthorized(w)
				return
			}

			username, _ := claims["username"].(string)
			if username == "" {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUsername(r.Context(), username)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(MessageResponse{Message: MsgUnauthorized})
}
