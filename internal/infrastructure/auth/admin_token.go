package auth

import (
	"crypto/subtle"
)

// AdminTokenVerifier checks the shared secret protecting the admin endpoints
type AdminTokenVerifier struct {
	token string
}

// NewAdminTokenVerifier creates a verifier for the configured token.
// An empty token disables admin access entirely.
func NewAdminTokenVerifier(token string) *AdminTokenVerifier {
	return &AdminTokenVerifier{token: token}
}

// Verify reports whether the presented token matches.
// Comparison is constant time to avoid leaking the token through timing.
func (v *AdminTokenVerifier) Verify(presented string) bool {
	if v.token == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(v.token), []byte(presented)) == 1
}
