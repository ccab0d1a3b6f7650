// Package entry orchestrates paid lottery entry submissions: nonce allocation,
// address derivation, token account setup, transaction submission, and outcome
// publication.
package entry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/billions-bounty/entrygate/service/metrics"
	"github.com/billions-bounty/entrygate/service/nats"
	"github.com/billions-bounty/entrygate/service/nonce"
	solsvc "github.com/billions-bounty/entrygate/service/solana"
	"github.com/billions-bounty/entrygate/service/temporal"
)

// Reconciler hands off submissions with unknown outcomes for asynchronous
// settlement. Implemented by the Temporal client.
type Reconciler interface {
	ScheduleReconciliation(ctx context.Context, input temporal.ReconcileSubmissionInput) error
}

// ErrEntryAlreadyExists means the derived entry account is already initialized
// on-chain. The allocated nonce stays burned: its address is occupied.
var ErrEntryAlreadyExists = solsvc.ErrAccountAlreadyExists

// ErrInvalidParams wraps request validation failures.
var ErrInvalidParams = errors.New("invalid entry parameters")

// Bounty tiers accepted by the multi-bounty program deployment.
const (
	minBountyID = 1
	maxBountyID = 4
)

// SubmitEntryParams are the caller-supplied inputs for one entry.
type SubmitEntryParams struct {
	// UserWallet is the beneficiary credited with the entry. It does not sign;
	// the service keypair funds and signs the transaction.
	UserWallet string

	// Amount is the entry payment in base token units.
	Amount uint64

	// BountyID selects a per-bounty lottery account. Nil targets the
	// singleton lottery.
	BountyID *uint8

	// NonceHint is the client's expectation of the next nonce. Advisory only.
	NonceHint *uint64
}

// SubmitEntryResult reports where an entry landed.
type SubmitEntryResult struct {
	Signature    string `json:"signature,omitempty"`
	EntryAddress string `json:"entry_address"`
	Nonce        uint64 `json:"nonce"`
	Status       string `json:"status"`
}

// Service submits entries end to end.
type Service struct {
	pipeline   *solsvc.Pipeline
	resolver   *solsvc.Resolver
	allocator  *nonce.Allocator
	publisher  nats.Publisher
	programID  solana.PublicKey
	mint       solana.PublicKey
	reconciler Reconciler
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewService creates an entry Service. The publisher may be nil when outcome
// events are not wanted (single-shot CLI use).
func NewService(
	pipeline *solsvc.Pipeline,
	resolver *solsvc.Resolver,
	allocator *nonce.Allocator,
	publisher nats.Publisher,
	programID solana.PublicKey,
	mint solana.PublicKey,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		pipeline:  pipeline,
		resolver:  resolver,
		allocator: allocator,
		publisher: publisher,
		programID: programID,
		mint:      mint,
		metrics:   m,
		logger:    logger,
	}
}

// WithReconciler adds asynchronous settlement for timed-out submissions.
func (s *Service) WithReconciler(r Reconciler) *Service {
	s.reconciler = r
	return s
}

// SubmitEntry runs the full submission flow for one entry.
//
// The nonce is committed before anything uses it. It is rolled back only on
// failures where the entry address has been confirmed absent on-chain AND no
// transaction carrying it has left the process. Once a submission is attempted
// the nonce stays burned whatever happens, because its fate on-chain can no
// longer be known locally.
func (s *Service) SubmitEntry(ctx context.Context, params SubmitEntryParams) (*SubmitEntryResult, error) {
	userWallet, err := s.validate(params)
	if err != nil {
		return nil, err
	}

	n, err := s.allocateNonce(ctx, params)
	if err != nil {
		return nil, err
	}

	lottery, entryAddr, err := s.deriveAddresses(params.BountyID, n)
	if err != nil {
		// Derivation is pure; nothing touched the chain.
		s.rollbackNonce(ctx, params.UserWallet, n)
		return nil, err
	}

	log := s.logger.With(
		"user_wallet", params.UserWallet,
		"entry_address", entryAddr.String(),
		"nonce", n,
	)

	exists, err := s.pipeline.AccountExists(ctx, entryAddr)
	if err != nil {
		// Unknown chain state: the address may be occupied, so the nonce
		// cannot be safely reissued.
		return nil, fmt.Errorf("check entry account: %w", err)
	}
	if exists {
		log.WarnContext(ctx, "entry account already initialized")
		return nil, fmt.Errorf("entry %s nonce %d: %w", entryAddr, n, ErrEntryAlreadyExists)
	}

	payerATA, _, err := s.resolver.EnsureTokenAccount(ctx, s.pipeline.Payer(), s.mint)
	if err != nil {
		s.rollbackNonce(ctx, params.UserWallet, n)
		return nil, fmt.Errorf("ensure payer token account: %w", err)
	}
	jackpotATA, _, err := s.resolver.EnsureTokenAccount(ctx, lottery, s.mint)
	if err != nil {
		s.rollbackNonce(ctx, params.UserWallet, n)
		return nil, fmt.Errorf("ensure jackpot token account: %w", err)
	}

	ix := solsvc.NewEntryPaymentInstruction(solsvc.EntryPaymentParams{
		ProgramID:           s.programID,
		Lottery:             lottery,
		Entry:               entryAddr,
		Payer:               s.pipeline.Payer(),
		UserWallet:          userWallet,
		PayerTokenAccount:   payerATA,
		JackpotTokenAccount: jackpotATA,
		Mint:                s.mint,
		Amount:              params.Amount,
		Nonce:               n,
	})

	// Point of no return: from here the nonce is burned.
	sig, err := s.pipeline.SubmitAndConfirm(ctx, []solana.Instruction{ix})

	result := &SubmitEntryResult{
		Signature:    sig.String(),
		EntryAddress: entryAddr.String(),
		Nonce:        n,
	}
	if sig.IsZero() {
		result.Signature = ""
	}

	switch {
	case err == nil:
		result.Status = nats.EntryStatusConfirmed
		log.InfoContext(ctx, "entry confirmed", "signature", sig.String(), "amount", params.Amount)
	case errors.Is(err, solsvc.ErrAccountAlreadyExists):
		// The program rejected the init because a concurrent submission won
		// the address. Same terminal condition as the pre-check.
		log.WarnContext(ctx, "entry account collision on submit")
		return nil, fmt.Errorf("entry %s nonce %d: %w", entryAddr, n, ErrEntryAlreadyExists)
	case errors.Is(err, solsvc.ErrConfirmationTimeout):
		result.Status = nats.EntryStatusTimeout
		log.WarnContext(ctx, "entry confirmation timed out", "signature", result.Signature)
		s.scheduleReconciliation(ctx, params, result)
	default:
		result.Status = nats.EntryStatusFailed
		log.ErrorContext(ctx, "entry submission failed", "error", err)
	}

	s.publishOutcome(ctx, params, result)

	if err != nil {
		return result, err
	}
	return result, nil
}

// validate checks request fields and parses the beneficiary address.
func (s *Service) validate(params SubmitEntryParams) (solana.PublicKey, error) {
	if params.Amount == 0 {
		return solana.PublicKey{}, fmt.Errorf("%w: amount must be positive", ErrInvalidParams)
	}
	if params.BountyID != nil {
		if *params.BountyID < minBountyID || *params.BountyID > maxBountyID {
			return solana.PublicKey{}, fmt.Errorf("%w: bounty id %d out of range [%d,%d]",
				ErrInvalidParams, *params.BountyID, minBountyID, maxBountyID)
		}
	}
	userWallet, err := solana.PublicKeyFromBase58(params.UserWallet)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: user wallet: %v", ErrInvalidParams, err)
	}
	return userWallet, nil
}

func (s *Service) allocateNonce(ctx context.Context, params SubmitEntryParams) (uint64, error) {
	if params.NonceHint != nil {
		return s.allocator.AllocateWithHint(ctx, params.UserWallet, *params.NonceHint)
	}
	return s.allocator.Allocate(ctx, params.UserWallet)
}

// deriveAddresses resolves the lottery account for the target bounty and the
// entry account for this nonce. Entry seeds use the funding signer, not the
// beneficiary: the signer is what the on-chain init constraint checks.
func (s *Service) deriveAddresses(bountyID *uint8, n uint64) (lottery, entryAddr solana.PublicKey, err error) {
	if bountyID != nil {
		lottery, _, err = solsvc.DeriveLotteryAddressForBounty(s.programID, *bountyID)
	} else {
		lottery, _, err = solsvc.DeriveLotteryAddress(s.programID)
	}
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}

	entryAddr, _, err = solsvc.DeriveEntryAddress(s.programID, lottery, s.pipeline.Payer(), n)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	return lottery, entryAddr, nil
}

// rollbackNonce best-effort returns an unused nonce. Failure to roll back only
// burns a number, so it is logged and not propagated.
func (s *Service) rollbackNonce(ctx context.Context, wallet string, n uint64) {
	if err := s.allocator.Rollback(ctx, wallet, n); err != nil {
		s.logger.WarnContext(ctx, "nonce rollback failed, nonce stays burned",
			"wallet", wallet,
			"nonce", n,
			"error", err,
		)
	}
}

// scheduleReconciliation hands a timed-out submission to the reconciliation
// workflow. Best effort: if the handoff fails the timeout event still reaches
// the stream and an operator can reconcile manually.
func (s *Service) scheduleReconciliation(ctx context.Context, params SubmitEntryParams, result *SubmitEntryResult) {
	if s.reconciler == nil || result.Signature == "" {
		return
	}
	err := s.reconciler.ScheduleReconciliation(ctx, temporal.ReconcileSubmissionInput{
		Signature:    result.Signature,
		UserWallet:   params.UserWallet,
		EntryAddress: result.EntryAddress,
		Nonce:        result.Nonce,
		Amount:       params.Amount,
		BountyID:     params.BountyID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to schedule reconciliation",
			"signature", result.Signature,
			"error", err,
		)
	}
}

// publishOutcome emits the entry event. Publishing is observability, not part
// of the submission contract: failures are logged and swallowed.
func (s *Service) publishOutcome(ctx context.Context, params SubmitEntryParams, result *SubmitEntryResult) {
	if s.publisher == nil {
		return
	}
	event := &nats.EntryEvent{
		Signature:    result.Signature,
		EntryAddress: result.EntryAddress,
		UserWallet:   params.UserWallet,
		Payer:        s.pipeline.Payer().String(),
		Nonce:        result.Nonce,
		Amount:       params.Amount,
		BountyID:     params.BountyID,
		Status:       result.Status,
		PublishedAt:  time.Now().UTC(),
	}
	if err := s.publisher.PublishEntry(ctx, event); err != nil {
		s.metrics.RecordEntryEventPublished("error")
		s.logger.ErrorContext(ctx, "failed to publish entry event",
			"entry_address", result.EntryAddress,
			"error", err,
		)
		return
	}
	s.metrics.RecordEntryEventPublished("ok")
}
