package repeatstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemRepeatStoreBump(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemRepeatStore()

	cnt, chs, err := s.Bump(ctx, 7, "sig", 100, 10*time.Minute)
	assert.NoError(err)
	assert.Equal(1, cnt)
	assert.Equal(1, chs)

	cnt, chs, err = s.Bump(ctx, 7, "sig", 100, 10*time.Minute)
	assert.NoError(err)
	assert.Equal(2, cnt)
	assert.Equal(1, chs)

	// same signature in a second channel
	cnt, chs, err = s.Bump(ctx, 7, "sig", 200, 10*time.Minute)
	assert.NoError(err)
	assert.Equal(3, cnt)
	assert.Equal(2, chs)

	// different author tracks independently
	cnt, chs, err = s.Bump(ctx, 8, "sig", 100, 10*time.Minute)
	assert.NoError(err)
	assert.Equal(1, cnt)
	assert.Equal(1, chs)
}

func TestMemRepeatStoreWindowReset(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemRepeatStore()

	base := time.Now()
	s.now = func() time.Time { return base }

	cnt, chs, err := s.Bump(ctx, 7, "sig", 100, 10*time.Minute)
	assert.NoError(err)
	assert.Equal(1, cnt)
	assert.Equal(1, chs)

	s.Bump(ctx, 7, "sig", 200, 10*time.Minute)

	// past the window, the record resets before incrementing
	s.now = func() time.Time { return base.Add(11 * time.Minute) }
	cnt, chs, err = s.Bump(ctx, 7, "sig", 300, 10*time.Minute)
	assert.NoError(err)
	assert.Equal(1, cnt)
	assert.Equal(1, chs)
}
