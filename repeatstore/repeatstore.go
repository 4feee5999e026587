// Package repeatstore tracks repeated and cross-posted content per author
// within a rolling time window. It catches near-identical spam posted several
// times, or across several channels, even when a single post scores below the
// keyword threshold.
package repeatstore

import (
	"context"
	"time"
)

type RepeatStore interface {
	// Bump records one observation of (author, signature) in channel and
	// returns the observation count and distinct channel count for the
	// current window. A window that has expired at lookup time is reset
	// before counting, so the first post after expiry reports count 1.
	Bump(ctx context.Context, authorID int64, signature string, channelID int64, window time.Duration) (count, distinctChannels int, err error)
}
