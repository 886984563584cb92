package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors for store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingScope is returned when a read or write lacks its owner ids.
	// Stores fail closed rather than reading across tenants.
	ErrMissingScope = errors.New("user and business scope required")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// store's configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// collectionNamePattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName rejects names outside ^[a-z0-9_]{1,64}$.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// requireScope fails closed when any id is blank.
func requireScope(ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return ErrMissingScope
		}
	}
	return nil
}

// scopedName derives a collection name from arbitrary caller ids. Ids may
// contain any characters, so they are hashed rather than sanitized.
func scopedName(prefix string, ids ...string) string {
	h := sha256.Sum256([]byte(strings.Join(ids, "\x00")))
	return prefix + "_" + hex.EncodeToString(h[:16])
}
