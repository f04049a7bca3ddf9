package revocation

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryList_RevokeThenCheck(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	revoked, err := l.IsRevoked(ctx, "urn:uuid:abc")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, l.Revoke(ctx, "urn:uuid:abc"))

	revoked, err = l.IsRevoked(ctx, "urn:uuid:abc")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestInMemoryList_RevokeIsIdempotent(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	require.NoError(t, l.Revoke(ctx, "urn:uuid:abc"))
	require.NoError(t, l.Revoke(ctx, "urn:uuid:abc"))

	revoked, err := l.IsRevoked(ctx, "urn:uuid:abc")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestInMemoryList_ConcurrentAccess(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("urn:uuid:%d", i)
			_ = l.Revoke(ctx, id)
			_, _ = l.IsRevoked(ctx, id)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 16; i++ {
		revoked, err := l.IsRevoked(ctx, fmt.Sprintf("urn:uuid:%d", i))
		require.NoError(t, err)
		assert.True(t, revoked)
	}
}
