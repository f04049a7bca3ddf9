package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aval/internal/ledger"
)

func TestInMemoryStore_AppendPreservesOrder(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := s.Append(ctx, &ledger.TransactionBatch{TransactionID: fmt.Sprintf("txn-%d", i)})
		require.NoError(t, err)
	}

	batches, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	for i, b := range batches {
		assert.Equal(t, fmt.Sprintf("txn-%d", i), b.TransactionID)
	}
}

func TestInMemoryStore_ListEmpty(t *testing.T) {
	s := NewMemory()

	batches, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestInMemoryStore_ListReturnsCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, &ledger.TransactionBatch{TransactionID: "txn-1", Amount: 25}))

	first, err := s.List(ctx)
	require.NoError(t, err)
	first[0].Amount = 9999

	second, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25.0, second[0].Amount)
}

func TestInMemoryStore_AppendCopiesInput(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	batch := &ledger.TransactionBatch{TransactionID: "txn-1", Amount: 25}
	require.NoError(t, s.Append(ctx, batch))
	batch.Amount = 9999

	batches, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25.0, batches[0].Amount)
}

func TestInMemoryStore_ConcurrentAppends(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Append(ctx, &ledger.TransactionBatch{TransactionID: fmt.Sprintf("txn-%d", i)})
		}(i)
	}
	wg.Wait()

	batches, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, batches, n)
}

func TestInMemoryStore_Exists(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, &ledger.TransactionBatch{TransactionID: "txn-a"}))

	exists, err := s.Exists(ctx, "txn-a")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.Exists(ctx, "txn-b")
	require.NoError(t, err)
	assert.False(t, exists)
}
