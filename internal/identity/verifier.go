// Package identity resolves bearer tokens issued by the external identity
// provider into user identities.
package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mastrohq/mastro/internal/model"
)

var (
	// ErrNotConfigured indicates the verifier has no signing secret.
	ErrNotConfigured = errors.New("identity verifier not configured")
	// ErrInvalidToken indicates the token failed verification.
	ErrInvalidToken = errors.New("invalid identity token")
)

// claims is the subset of the provider's JWT claims the service needs.
type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 JWTs against the identity provider's shared
// signing secret and extracts the user identity from the claims.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a Verifier. An empty issuer disables the issuer check.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Configured reports whether a signing secret is present.
func (v *Verifier) Configured() bool {
	return len(v.secret) > 0
}

// Verify resolves a raw bearer token to an Identity.
// Only HMAC-signed tokens are accepted; any parse or claim failure maps to
// ErrInvalidToken so callers cannot distinguish why a token was rejected.
func (v *Verifier) Verify(raw string) (model.Identity, error) {
	if !v.Configured() {
		return model.Identity{}, ErrNotConfigured
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || c.Subject == "" {
		return model.Identity{}, ErrInvalidToken
	}

	return model.Identity{ID: c.Subject, Email: c.Email}, nil
}
