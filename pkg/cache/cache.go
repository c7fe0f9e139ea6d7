// Package cache defines the response cache used by the completion client and
// the fingerprint that keys it.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/jxzhangjhu/guidance/pkg/models"
)

// DefaultNamespace is the cache namespace shared by every client that talks
// to the OpenAI-compatible API.
const DefaultNamespace = "openai"

// Cache maps request fingerprints to encoded responses.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the stored response and whether it was found.
	Get(ctx context.Context, fingerprint string) ([]byte, bool, error)
	// Put stores a response. Writing the same fingerprint twice keeps the last value.
	Put(ctx context.Context, fingerprint string, response []byte) error
}

// Store is a Cache with the administrative operations used by the CLI.
type Store interface {
	Cache
	Stats(ctx context.Context) (models.CacheStats, error)
	Clear(ctx context.Context) error
	Close() error
}

// Key is the full parameter tuple that determines a completion.
// Field order is the canonical encoding order.
type Key struct {
	Model       string         `json:"model"`
	Prompt      string         `json:"prompt"`
	Stop        []string       `json:"stop"`
	Temperature float64        `json:"temperature"`
	N           int            `json:"n"`
	MaxTokens   int            `json:"max_tokens"`
	Logprobs    *int           `json:"logprobs"`
	Echo        bool           `json:"echo"`
	LogitBias   map[string]int `json:"logit_bias"`
	CacheSeed   int            `json:"cache_seed"`
	TopP        float64        `json:"top_p"`
	Chat        bool           `json:"chat"`
}

// Fingerprint returns the hex SHA-256 of the canonical JSON encoding of k.
// encoding/json writes struct fields in declaration order and map keys
// sorted, so equal keys always produce equal fingerprints. Keys holding a
// NaN or infinite float cannot be encoded and return an error.
func Fingerprint(k Key) (string, error) {
	data, err := json.Marshal(k)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
