package providers

import (
	"context"
	"errors"
	"net/http"
)

// ErrMissingCredentials is returned when a request carries nothing to verify.
var ErrMissingCredentials = errors.New("missing credentials")

// AuthProvider resolves the identity of a connecting player.
type AuthProvider interface {
	// TokenFromRequest extracts the credential the provider understands from r.
	TokenFromRequest(r *http.Request) (string, error)
	// VerifyToken validates the credential and returns the identity claims.
	VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error)
}

type TokenClaims struct {
	UID string `json:"uid"`
}

// Authenticate runs both steps of p against r.
func Authenticate(p AuthProvider, r *http.Request) (*TokenClaims, error) {
	token, err := p.TokenFromRequest(r)
	if err != nil {
		return nil, err
	}
	return p.VerifyToken(r.Context(), token)
}
