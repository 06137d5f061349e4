// Package kv provides the shared key-value store used for coordination
// records. Every entry carries a TTL so stale agent state, negotiation
// responses, escalations and decisions age out on their own.
package kv

import (
	"context"
	"time"
)

// Store is the minimal contract the coordination services need: TTL-bounded
// reads and writes plus a conditional set for create-once records.
type Store interface {
	// Get returns the value for key. The bool reports whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes key with the given TTL, replacing any previous value.
	// A zero TTL stores the key without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX writes key only if it does not already exist. The bool reports
	// whether the write happened.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
