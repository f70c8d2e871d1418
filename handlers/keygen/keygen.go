// Package keygen generates the per-project API key project.create
// writes into a project's configuration, adapted from
// rezkam-mono/internal/infrastructure/keygen.
package keygen

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Service and Version are fixed for every generated key; only KeyType
// varies (callers always pass "sk" for a project's secret key today,
// but the parameter is kept so a future public-key variant doesn't
// need a second generator).
const (
	service = "doceq"
	version = "v1"
)

// Key is a generated project API key, split into its displayable
// prefix and its secret material.
type Key struct {
	ShortToken string
	LongSecret string
	Full       string
}

// Generate creates a new API key shaped
// "{keyType}-doceq-v1-{shortToken}-{longSecret}": 32 random bytes for
// the secret, with a 12-hex-char lookup token derived from a BLAKE2b
// hash of that secret.
func Generate(keyType string) (*Key, error) {
	longBytes := make([]byte, 32)
	if _, err := rand.Read(longBytes); err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	longSecret := base64.RawURLEncoding.EncodeToString(longBytes)

	hash := blake2b.Sum256([]byte(longSecret))
	shortToken := hex.EncodeToString(hash[:6])

	return &Key{
		ShortToken: shortToken,
		LongSecret: longSecret,
		Full:       fmt.Sprintf("%s-%s-%s-%s-%s", keyType, service, version, shortToken, longSecret),
	}, nil
}
