package nonce

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAllocator() *Allocator {
	return NewAllocator(NewMemStore(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAllocate_Sequential(t *testing.T) {
	a := newTestAllocator()
	ctx := context.Background()

	for want := uint64(1); want <= 5; want++ {
		got, err := a.Allocate(ctx, "wallet-a")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestAllocate_WalletsIndependent(t *testing.T) {
	a := newTestAllocator()
	ctx := context.Background()

	n, err := a.Allocate(ctx, "wallet-a")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	n, err = a.Allocate(ctx, "wallet-a")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	// A different wallet starts from its own counter.
	n, err = a.Allocate(ctx, "wallet-b")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestAllocate_ConcurrentSameWalletNoDuplicates(t *testing.T) {
	a := newTestAllocator()
	ctx := context.Background()

	const workers = 100
	results := make([]uint64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := a.Allocate(ctx, "wallet-a")
			assert.NoError(t, err)
			results[i] = n
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, n := range results {
		assert.Equal(t, uint64(i+1), n, "allocation %d", i)
	}
}

func TestAllocateWithHint_MismatchDoesNotChangeResult(t *testing.T) {
	a := newTestAllocator()
	ctx := context.Background()

	// Hint agrees.
	n, err := a.AllocateWithHint(ctx, "wallet-a", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	// Stale hint; the allocated value still wins.
	n, err = a.AllocateWithHint(ctx, "wallet-a", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestRollback_ReturnsCurrentNonce(t *testing.T) {
	a := newTestAllocator()
	ctx := context.Background()

	n, err := a.Allocate(ctx, "wallet-a")
	require.NoError(t, err)
	require.NoError(t, a.Rollback(ctx, "wallet-a", n))

	// The rolled-back nonce is reissued.
	n, err = a.Allocate(ctx, "wallet-a")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestRollback_StaleNonceLeftBurned(t *testing.T) {
	a := newTestAllocator()
	ctx := context.Background()

	first, err := a.Allocate(ctx, "wallet-a")
	require.NoError(t, err)
	_, err = a.Allocate(ctx, "wallet-a")
	require.NoError(t, err)

	// Counter has moved past first; the release is swallowed and the counter
	// stays put.
	require.NoError(t, a.Rollback(ctx, "wallet-a", first))

	n, err := a.Allocate(ctx, "wallet-a")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}
