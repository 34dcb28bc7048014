// Package ephemeral is the TTL key/value collaborator used for session
// flags, QR login state and access-token bookkeeping. The interface is the
// minimal single-key command set the bridge relies on, so a redis-backed
// implementation can replace the in-memory one without touching callers.
package ephemeral

import (
	"context"
	"time"
)

type Store interface {
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value and whether the key exists and is unexpired.
	Get(ctx context.Context, key string) (string, bool, error)
	// GetSet atomically stores value under key and returns the previous
	// value, if any. Single-active-token issuance depends on this being one
	// operation.
	GetSet(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error)
	Delete(ctx context.Context, key string) error

	// Hash commands for the login session records.
	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Expire sets or refreshes the ttl of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Rename moves a key, carrying value and remaining ttl. Missing source
	// is reported through ErrNoKey.
	Rename(ctx context.Context, oldKey, newKey string) error
}
