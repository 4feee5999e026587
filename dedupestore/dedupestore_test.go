package dedupestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemDedupeStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemDedupeStore(0)

	seen, err := s.Check(ctx, "msg", "k1")
	assert.NoError(err)
	assert.False(seen)

	assert.NoError(s.Set(ctx, "msg", "k1", time.Minute))
	seen, err = s.Check(ctx, "msg", "k1")
	assert.NoError(err)
	assert.True(seen)

	// namespaces are independent
	seen, err = s.Check(ctx, "att", "k1")
	assert.NoError(err)
	assert.False(seen)
}

func TestMemDedupeStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemDedupeStore(0)

	assert.NoError(s.Set(ctx, "phash-cd", "42", 10*time.Millisecond))
	seen, err := s.Check(ctx, "phash-cd", "42")
	assert.NoError(err)
	assert.True(seen)

	time.Sleep(50 * time.Millisecond)
	seen, err = s.Check(ctx, "phash-cd", "42")
	assert.NoError(err)
	assert.False(seen)
}
