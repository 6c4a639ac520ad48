package network

import (
	"context"
	"net/http"

	authproviders "github.com/cbodonnell/wordrush/pkg/auth/providers"
	"github.com/cbodonnell/wordrush/pkg/log"
)

type ContextKey int

const (
	// ClaimsContextKey is the key used to store the verified claims in the request context
	ClaimsContextKey ContextKey = iota
)

// NewAuthMiddleware rejects requests the provider cannot verify with 401.
func NewAuthMiddleware(authProvider authproviders.AuthProvider) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authproviders.Authenticate(authProvider, r)
			if err != nil {
				log.Warn("Rejected request from %s: %v", r.RemoteAddr, err)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*authproviders.TokenClaims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*authproviders.TokenClaims)
	return claims, ok && claims != nil
}
