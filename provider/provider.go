// Package provider defines the storage abstraction used by aliascache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set or Add for a key (no
// prepended/appended metadata, no re-encoding, no mutation).
//
// Important: the keyspaces "single:<ns>:", "query:<ns>:" and "marker:<ns>:" are
// owned by aliascache. External code MUST NOT write values under these prefixes.
// Foreign writes may be treated as corruption by strict wire-format validation
// and deleted.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs.
// Must be safe for concurrent use. Atomicity is only required per key
// operation; aliascache performs no locking of its own.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if unsupported.
	// ttl <= 0 means no expiry.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Add stores value only when key is absent.
	// Returns added=false when the key already exists or the write was rejected.
	Add(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (added bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
