package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/billions-bounty/entrygate/service/metrics"
)

// Pipeline submits signed transactions and tracks them to a commitment level.
// It owns the only automatic retry in the system: a bounded re-sign loop for
// transactions whose blockhash expired before landing. All other failures are
// returned to the caller classified.
type Pipeline struct {
	rpc                 RPCClient
	payer               solana.PrivateKey
	commitment          rpc.CommitmentType
	confirmTimeout      time.Duration
	pollInterval        time.Duration
	maxBlockhashRetries int
	metrics             *metrics.Metrics
	logger              *slog.Logger
}

// PipelineConfig carries the knobs for a Pipeline. Zero durations fall back to
// conservative defaults.
type PipelineConfig struct {
	Payer               solana.PrivateKey
	Commitment          rpc.CommitmentType
	ConfirmTimeout      time.Duration
	PollInterval        time.Duration
	MaxBlockhashRetries int
}

// NewPipeline creates a Pipeline on top of an RPCClient.
func NewPipeline(client RPCClient, cfg PipelineConfig, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 700 * time.Millisecond
	}
	if cfg.MaxBlockhashRetries < 0 {
		cfg.MaxBlockhashRetries = 0
	}
	return &Pipeline{
		rpc:                 client,
		payer:               cfg.Payer,
		commitment:          cfg.Commitment,
		confirmTimeout:      cfg.ConfirmTimeout,
		pollInterval:        cfg.PollInterval,
		maxBlockhashRetries: cfg.MaxBlockhashRetries,
		metrics:             m,
		logger:              logger,
	}
}

// Payer returns the public key of the signing keypair.
func (p *Pipeline) Payer() solana.PublicKey {
	return p.payer.PublicKey()
}

// Commitment returns the commitment level transactions are tracked to.
func (p *Pipeline) Commitment() rpc.CommitmentType {
	return p.commitment
}

// AccountExists reports whether an account is initialized on-chain at the
// pipeline's commitment level. A missing account is not an error.
func (p *Pipeline) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	start := time.Now()
	out, err := p.rpc.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: p.commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			p.metrics.RecordRPCCall("getAccountInfo", "ok", time.Since(start).Seconds())
			return false, nil
		}
		p.metrics.RecordRPCCall("getAccountInfo", "error", time.Since(start).Seconds())
		return false, fmt.Errorf("get account info for %s: %w", account, err)
	}
	p.metrics.RecordRPCCall("getAccountInfo", "ok", time.Since(start).Seconds())
	return out != nil && out.Value != nil, nil
}

// SubmitAndConfirm signs the instructions, sends the transaction, and waits
// until it reaches the pipeline's commitment level.
//
// If the blockhash expires before the transaction lands, the same instructions
// are re-signed against a fresh blockhash and resent, up to the configured
// retry bound. The instruction payload is never altered across attempts, so a
// retried submission lands on the same derived addresses and the on-chain
// account collision still rejects an accidental double-land.
func (p *Pipeline) SubmitAndConfirm(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxBlockhashRetries; attempt++ {
		if attempt > 0 {
			p.metrics.RecordSubmissionRetry("blockhash_expired")
			p.logger.WarnContext(ctx, "resubmitting with fresh blockhash",
				"attempt", attempt,
				"max_retries", p.maxBlockhashRetries,
			)
		}

		sig, err := p.submitOnce(ctx, instructions)
		if err != nil {
			if errors.Is(err, ErrBlockhashExpired) {
				lastErr = err
				continue
			}
			p.metrics.RecordSubmission("rejected")
			return solana.Signature{}, err
		}

		confirmStart := time.Now()
		err = p.waitForConfirmation(ctx, sig)
		switch {
		case err == nil:
			p.metrics.RecordSubmission("confirmed")
			p.metrics.RecordConfirmationDuration(time.Since(confirmStart).Seconds())
			return sig, nil
		case errors.Is(err, ErrConfirmationTimeout):
			p.metrics.RecordSubmission("timeout")
			// The signature is returned alongside the error: the transaction
			// may still land, and reconciliation needs the signature to find out.
			return sig, err
		default:
			p.metrics.RecordSubmission("failed")
			return sig, err
		}
	}
	p.metrics.RecordSubmission("rejected")
	return solana.Signature{}, fmt.Errorf("blockhash retries exhausted after %d attempts: %w", p.maxBlockhashRetries+1, lastErr)
}

// submitOnce fetches a fresh blockhash, signs, and sends one transaction.
func (p *Pipeline) submitOnce(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error) {
	start := time.Now()
	recent, err := p.rpc.GetLatestBlockhash(ctx, p.commitment)
	if err != nil {
		p.metrics.RecordRPCCall("getLatestBlockhash", "error", time.Since(start).Seconds())
		return solana.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	p.metrics.RecordRPCCall("getLatestBlockhash", "ok", time.Since(start).Seconds())

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(p.payer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(p.payer.PublicKey()) {
			return &p.payer
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	sendStart := time.Now()
	sig, err := p.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: p.commitment,
	})
	if err != nil {
		p.metrics.RecordRPCCall("sendTransaction", "error", time.Since(sendStart).Seconds())
		return solana.Signature{}, classifySendError(err)
	}
	p.metrics.RecordRPCCall("sendTransaction", "ok", time.Since(sendStart).Seconds())

	p.logger.InfoContext(ctx, "transaction submitted",
		"signature", sig.String(),
		"blockhash", recent.Value.Blockhash.String(),
	)
	return sig, nil
}

// waitForConfirmation polls signature status until the transaction reaches the
// target commitment, fails on-chain, or the deadline passes.
func (p *Pipeline) waitForConfirmation(ctx context.Context, sig solana.Signature) error {
	deadline := time.Now().Add(p.confirmTimeout)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrConfirmationTimeout, ctx.Err())
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: signature %s not at %s after %s",
				ErrConfirmationTimeout, sig, p.commitment, p.confirmTimeout)
		}

		start := time.Now()
		out, err := p.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			p.metrics.RecordRPCCall("getSignatureStatuses", "error", time.Since(start).Seconds())
			p.logger.WarnContext(ctx, "signature status poll failed", "signature", sig.String(), "error", err)
			continue
		}
		p.metrics.RecordRPCCall("getSignatureStatuses", "ok", time.Since(start).Seconds())

		if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
			continue
		}
		status := out.Value[0]

		if status.Err != nil {
			return classifyExecutionError(status.Err)
		}

		if commitmentReached(status.ConfirmationStatus, p.commitment) {
			p.logger.InfoContext(ctx, "transaction confirmed",
				"signature", sig.String(),
				"status", string(status.ConfirmationStatus),
			)
			return nil
		}
	}
}

// commitmentReached reports whether an observed confirmation status satisfies
// the target commitment. Finalized satisfies a confirmed target.
func commitmentReached(observed rpc.ConfirmationStatusType, target rpc.CommitmentType) bool {
	switch target {
	case rpc.CommitmentFinalized:
		return observed == rpc.ConfirmationStatusFinalized
	default:
		return observed == rpc.ConfirmationStatusConfirmed ||
			observed == rpc.ConfirmationStatusFinalized
	}
}
