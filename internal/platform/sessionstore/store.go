// Package sessionstore persists per-user UI state (editing sessions and
// wizard drafts) as JSON documents.
package sessionstore

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Load when no document is stored under a key.
var ErrNotFound = errors.New("session not found")

// Store is a keyed JSON document store.
type Store interface {
	// Load decodes the document stored under key into dst.
	Load(ctx context.Context, key string, dst any) error
	// Save replaces the document stored under key.
	Save(ctx context.Context, key string, v any) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Key joins key parts with ":". Empty parts are kept so that keys of
// different shapes cannot collide.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
