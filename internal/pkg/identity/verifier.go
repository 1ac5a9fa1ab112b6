// Package identity verifies bearer tokens issued by the external identity provider.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/ManuelReschke/BoostBoard/internal/pkg/config"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnavailable means the provider could not be asked, not that the token is bad.
	ErrUnavailable = errors.New("identity provider unavailable")
)

// Identity is the verified caller.
type Identity struct {
	UserID string
	Email  string
}

// Verifier checks a raw bearer token and returns who it belongs to.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// NewVerifier picks local JWT verification when a signing secret is
// configured, and the provider's user endpoint otherwise.
func NewVerifier(cfg config.IdentityConfig) (Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.JWTSecret != "" {
		return NewJWTVerifier(cfg.JWTSecret)
	}
	return NewRemoteVerifier(cfg.URL, cfg.ServiceKey), nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	h := strings.TrimSpace(header)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(h[7:])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
