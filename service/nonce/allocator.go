// Package nonce hands out per-wallet entry nonces. Nonces are the uniqueness
// dimension of entry addresses: each wallet's entries are numbered 1, 2, 3...
// and a number is never issued twice, even across process restarts. The
// counter is committed to the store before any submission uses the nonce, so a
// crash mid-submission burns the number rather than risking a reuse.
package nonce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/billions-bounty/entrygate/service/db"
	"github.com/billions-bounty/entrygate/service/metrics"
)

// Store is the persistence contract for nonce counters.
type Store interface {
	// NextNonce atomically advances the wallet's counter and returns the new
	// value. Concurrent calls for one wallet must each see a distinct value.
	NextNonce(ctx context.Context, wallet string) (uint64, error)

	// ReleaseNonce walks the counter back by one if and only if it still sits
	// at the given value. Returns db.ErrNonceNotCurrent otherwise.
	ReleaseNonce(ctx context.Context, wallet string, nonce uint64) error

	// CurrentNonce returns the highest nonce handed out, zero for a wallet
	// that has never entered.
	CurrentNonce(ctx context.Context, wallet string) (uint64, error)
}

// Allocator issues nonces against a Store and applies the reuse policy.
type Allocator struct {
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAllocator creates an Allocator.
func NewAllocator(store Store, m *metrics.Metrics, logger *slog.Logger) *Allocator {
	return &Allocator{store: store, metrics: m, logger: logger}
}

// Allocate commits and returns the next nonce for a wallet.
func (a *Allocator) Allocate(ctx context.Context, wallet string) (uint64, error) {
	n, err := a.store.NextNonce(ctx, wallet)
	if err != nil {
		a.metrics.RecordNonceAllocation("error")
		return 0, fmt.Errorf("allocate nonce: %w", err)
	}
	a.metrics.RecordNonceAllocation("ok")
	return n, nil
}

// AllocateWithHint allocates the next nonce and compares it against a
// client-supplied expectation. The hint is advisory: a mismatch is logged and
// counted but the allocated value always wins. Clients computing nonces from
// stale local state would otherwise collide with addresses already used.
func (a *Allocator) AllocateWithHint(ctx context.Context, wallet string, hint uint64) (uint64, error) {
	n, err := a.Allocate(ctx, wallet)
	if err != nil {
		return 0, err
	}
	if hint != n {
		a.metrics.RecordNonceConflict()
		a.logger.WarnContext(ctx, "client nonce hint disagrees with allocated nonce",
			"wallet", wallet,
			"hint", hint,
			"allocated", n,
		)
	}
	return n, nil
}

// Rollback returns a nonce to the pool. Callers may only do this when the
// entry address for the nonce has been confirmed absent on-chain and no
// submission carrying it ever left the process. A nonce that was current but
// has since been passed by newer allocations is left burned; that is the safe
// outcome, so the stale-release case is logged and swallowed.
func (a *Allocator) Rollback(ctx context.Context, wallet string, n uint64) error {
	err := a.store.ReleaseNonce(ctx, wallet, n)
	if err != nil {
		if errors.Is(err, db.ErrNonceNotCurrent) {
			a.logger.WarnContext(ctx, "nonce rollback skipped, counter has moved on",
				"wallet", wallet,
				"nonce", n,
			)
			return nil
		}
		return fmt.Errorf("rollback nonce %d: %w", n, err)
	}
	a.metrics.RecordNonceRollback()
	a.logger.InfoContext(ctx, "nonce rolled back", "wallet", wallet, "nonce", n)
	return nil
}
