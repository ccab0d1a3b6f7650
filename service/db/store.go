package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NonceStore persists per-wallet entry nonce counters in Postgres. One row per
// wallet, holding the highest nonce ever handed out for it.
type NonceStore struct {
	pool *pgxpool.Pool
}

// NewNonceStore creates a NonceStore backed by a connection pool.
func NewNonceStore(pool *pgxpool.Pool) *NonceStore {
	return &NonceStore{pool: pool}
}

// NextNonce atomically advances the wallet's counter and returns the new
// value. The upsert takes a row lock on the wallet's row, so concurrent calls
// for the same wallet serialize and each caller gets a distinct nonce.
// Wallets that have never entered start at 1.
func (s *NonceStore) NextNonce(ctx context.Context, wallet string) (uint64, error) {
	var nonce int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO entry_nonces (wallet_address, current_nonce, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (wallet_address) DO UPDATE
		SET current_nonce = entry_nonces.current_nonce + 1,
		    updated_at = now()
		RETURNING current_nonce`,
		wallet,
	).Scan(&nonce)
	if err != nil {
		return 0, fmt.Errorf("advance nonce for wallet %s: %w", wallet, err)
	}
	return uint64(nonce), nil
}

// ReleaseNonce walks the wallet's counter back by one, but only if the counter
// still sits at the released value. If another allocation has happened since,
// the release is a no-op: decrementing past a handed-out nonce would let it be
// issued twice.
func (s *NonceStore) ReleaseNonce(ctx context.Context, wallet string, nonce uint64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE entry_nonces
		SET current_nonce = current_nonce - 1,
		    updated_at = now()
		WHERE wallet_address = $1 AND current_nonce = $2`,
		wallet, int64(nonce),
	)
	if err != nil {
		return fmt.Errorf("release nonce %d for wallet %s: %w", nonce, wallet, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNonceNotCurrent
	}
	return nil
}

// CurrentNonce returns the highest nonce handed out for a wallet, or zero if
// the wallet has never entered.
func (s *NonceStore) CurrentNonce(ctx context.Context, wallet string) (uint64, error) {
	var nonce int64
	err := s.pool.QueryRow(ctx,
		`SELECT current_nonce FROM entry_nonces WHERE wallet_address = $1`,
		wallet,
	).Scan(&nonce)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read nonce for wallet %s: %w", wallet, err)
	}
	return uint64(nonce), nil
}
