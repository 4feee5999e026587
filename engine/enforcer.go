package engine

import (
	"context"
	"errors"
	"time"
)

// ErrMemberNotFound is returned by ResolveMember when the account is no
// longer a community member.
var ErrMemberNotFound = errors.New("member not found")

// Enforcer applies sanctions on the chat platform. All methods are expected
// to be idempotent at the platform level; the engine treats failures as
// best-effort outcomes.
type Enforcer interface {
	DeleteMessage(ctx context.Context, channelID, messageID int64) error
	DeleteThread(ctx context.Context, threadID int64) error
	TimeoutAccount(ctx context.Context, accountID int64, dur time.Duration) error
	BanAccount(ctx context.Context, accountID int64) error
	ResolveMember(ctx context.Context, accountID int64) (*AccountMeta, error)
}

// Fetcher downloads remote blobs with a caller-enforced byte ceiling.
type Fetcher interface {
	FetchBytes(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}
