package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/billions-bounty/entrygate/service/metrics"
	"github.com/billions-bounty/entrygate/service/nats"
	solsvc "github.com/billions-bounty/entrygate/service/solana"
)

// PublisherInterface is the slice of the NATS publisher the activities need.
type PublisherInterface interface {
	PublishEntry(ctx context.Context, event *nats.EntryEvent) error
}

// Activities holds dependencies for reconciliation activities.
type Activities struct {
	rpc       solsvc.RPCClient
	publisher PublisherInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates an Activities instance with the given dependencies.
// The publisher may be nil, in which case outcomes are only logged.
func NewActivities(rpc solsvc.RPCClient, publisher PublisherInterface, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		rpc:       rpc,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// CheckSignatureStatus queries the chain for a signature's fate, searching
// full transaction history so submissions older than the node's recent status
// cache are still found.
func (a *Activities) CheckSignatureStatus(ctx context.Context, input CheckSignatureStatusInput) (*CheckSignatureStatusResult, error) {
	sig, err := solana.SignatureFromBase58(input.Signature)
	if err != nil {
		return nil, fmt.Errorf("parse signature %q: %w", input.Signature, err)
	}

	out, err := a.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, fmt.Errorf("get signature status: %w", err)
	}

	result := &CheckSignatureStatusResult{}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		a.logger.Info("signature not found on chain", "signature", input.Signature)
		return result, nil
	}

	status := out.Value[0]
	result.Found = true
	if status.Err != nil {
		result.Failed = true
		result.RawError = fmt.Sprintf("%v", status.Err)
		return result, nil
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		result.Confirmed = true
	}
	return result, nil
}

// PublishOutcome emits the settled outcome to the entry event stream.
func (a *Activities) PublishOutcome(ctx context.Context, input PublishOutcomeInput) error {
	if a.publisher == nil {
		a.logger.Info("no publisher configured, outcome not published",
			"signature", input.Entry.Signature,
			"status", input.Status,
		)
		return nil
	}

	event := &nats.EntryEvent{
		Signature:    input.Entry.Signature,
		EntryAddress: input.Entry.EntryAddress,
		UserWallet:   input.Entry.UserWallet,
		Nonce:        input.Entry.Nonce,
		Amount:       input.Entry.Amount,
		BountyID:     input.Entry.BountyID,
		Status:       input.Status,
		PublishedAt:  time.Now().UTC(),
	}
	if err := a.publisher.PublishEntry(ctx, event); err != nil {
		a.metrics.RecordEntryEventPublished("error")
		return fmt.Errorf("publish reconciled outcome: %w", err)
	}
	a.metrics.RecordEntryEventPublished("ok")

	a.logger.Info("reconciled entry outcome published",
		"signature", input.Entry.Signature,
		"entry_address", input.Entry.EntryAddress,
		"status", input.Status,
	)
	return nil
}
