// Package dedupestore provides namespaced TTL-bounded key stores. The engine
// uses them for already-processed fingerprints (message and attachment dedup)
// and for per-account cooldown gates on expensive checks.
package dedupestore

import (
	"context"
	"time"
)

type DedupeStore interface {
	// Check reports whether key is present (and unexpired) in the named
	// namespace.
	Check(ctx context.Context, name, key string) (bool, error)
	// Set records key in the named namespace for ttl. Entries within one
	// namespace are expected to share a TTL.
	Set(ctx context.Context, name, key string, ttl time.Duration) error
}
