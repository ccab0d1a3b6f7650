package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"

	"github.com/billions-bounty/entrygate/service/metrics"
)

// Resolver makes sure associated token accounts exist before a payment that
// needs to move tokens through them.
type Resolver struct {
	pipeline *Pipeline
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewResolver creates a Resolver on top of a Pipeline.
func NewResolver(pipeline *Pipeline, m *metrics.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{pipeline: pipeline, metrics: m, logger: logger}
}

// EnsureTokenAccount derives the associated token account for owner/mint,
// creates it if it does not exist, and returns its address. The created flag
// reports whether this call performed the creation.
//
// Another actor creating the same account between our existence check and our
// create transaction is normal on a shared chain. That race surfaces as an
// already-exists rejection and is treated as success: the account is there,
// which is all the caller asked for.
func (r *Resolver) EnsureTokenAccount(ctx context.Context, owner, mint solana.PublicKey) (solana.PublicKey, bool, error) {
	addr, _, err := DeriveTokenAccountAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, false, err
	}

	exists, err := r.pipeline.AccountExists(ctx, addr)
	if err != nil {
		return solana.PublicKey{}, false, fmt.Errorf("check token account %s: %w", addr, err)
	}
	if exists {
		return addr, false, nil
	}

	r.logger.InfoContext(ctx, "creating associated token account",
		"token_account", addr.String(),
		"owner", owner.String(),
		"mint", mint.String(),
	)

	ix, err := associatedtokenaccount.NewCreateInstruction(
		r.pipeline.Payer(),
		owner,
		mint,
	).ValidateAndBuild()
	if err != nil {
		return solana.PublicKey{}, false, fmt.Errorf("build create token account instruction: %w", err)
	}

	_, err = r.pipeline.SubmitAndConfirm(ctx, []solana.Instruction{ix})
	if err != nil {
		if errors.Is(err, ErrAccountAlreadyExists) {
			r.logger.InfoContext(ctx, "token account created concurrently by another actor",
				"token_account", addr.String(),
			)
			return addr, false, nil
		}
		return solana.PublicKey{}, false, fmt.Errorf("create token account %s: %w", addr, err)
	}

	r.metrics.RecordTokenAccountCreated()
	return addr, true, nil
}
