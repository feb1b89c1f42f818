package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/autoseo/backend/internal/domain/shared"
)

// APIKeyPrefix marks every issued key so leaked keys are recognizable in
// logs and secret scanners
const APIKeyPrefix = "aseo_"

const apiKeyRandomBytes = 16

// ErrInvalidAPIKey is returned when a presented key does not resolve to a tenant
var ErrInvalidAPIKey = shared.NewDomainError("INVALID_API_KEY", "Invalid API key")

// GenerateAPIKey creates a new raw API key and its storable hash. The raw
// key is shown to the caller exactly once; only the hash is persisted.
func GenerateAPIKey() (raw, hash string, err error) {
	buf := make([]byte, apiKeyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate API key: %w", err)
	}

	raw = APIKeyPrefix + hex.EncodeToString(buf)
	return raw, HashAPIKey(raw), nil
}

// HashAPIKey returns the hex-encoded sha256 digest of a raw key. The
// digest is deterministic so tenants can be looked up by it.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ValidAPIKeyFormat reports whether a presented key has the issued shape.
// It does not prove the key resolves to a tenant.
func ValidAPIKeyFormat(raw string) bool {
	if !strings.HasPrefix(raw, APIKeyPrefix) {
		return false
	}
	body := raw[len(APIKeyPrefix):]
	if len(body) != apiKeyRandomBytes*2 {
		return false
	}
	_, err := hex.DecodeString(body)
	return err == nil
}
