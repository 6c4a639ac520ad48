package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength is the longest accepted display name.
const MaxNameLength = 32

var _ AuthProvider = &AnonymousAuthProvider{}

// AnonymousAuthProvider trusts the name the player chose.
// The name is taken from the "name" query parameter.
type AnonymousAuthProvider struct{}

func NewAnonymousAuthProvider() *AnonymousAuthProvider {
	return &AnonymousAuthProvider{}
}

func (p *AnonymousAuthProvider) TokenFromRequest(r *http.Request) (string, error) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		return "", fmt.Errorf("%w: name query parameter is required", ErrMissingCredentials)
	}
	return name, nil
}

func (p *AnonymousAuthProvider) VerifyToken(ctx context.Context, name string) (*TokenClaims, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &TokenClaims{
		UID: name,
	}, nil
}

// ValidateName accepts 1 to MaxNameLength letters, digits, spaces, underscores and hyphens.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxNameLength {
		return fmt.Errorf("name must be between 1 and %d characters", MaxNameLength)
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			continue
		}
		return fmt.Errorf("name contains invalid character %q", r)
	}
	return nil
}
