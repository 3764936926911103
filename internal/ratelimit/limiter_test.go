package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowDisabled(t *testing.T) {
	l := NewLimiter(nil, 1, 1, false)
	defer l.Close()

	for i := 0; i < 10; i++ {
		ok, err := l.Allow(context.Background(), "conn-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestAllowLocalBurst(t *testing.T) {
	l := NewLimiter(nil, 60, 2, true)
	defer l.Close()

	ctx := context.Background()
	ok, err := l.Allow(ctx, "conn-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "conn-1")
	assert.True(t, ok)

	// Burst exhausted.
	ok, _ = l.Allow(ctx, "conn-1")
	assert.False(t, ok)

	// Buckets are per connection.
	ok, _ = l.Allow(ctx, "conn-2")
	assert.True(t, ok)
}

func TestForgetResetsBucket(t *testing.T) {
	l := NewLimiter(nil, 60, 1, true)
	defer l.Close()

	ctx := context.Background()
	ok, _ := l.Allow(ctx, "conn-1")
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "conn-1")
	require.False(t, ok)

	require.NoError(t, l.Forget(ctx, "conn-1"))
	ok, _ = l.Allow(ctx, "conn-1")
	assert.True(t, ok)
}
