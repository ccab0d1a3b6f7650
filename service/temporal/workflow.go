package temporal

import (
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/billions-bounty/entrygate/service/nats"
)

var a *Activities // for type-safe activity invocation

const (
	// reconcilePollInterval is how long the workflow sleeps between status checks.
	reconcilePollInterval = 30 * time.Second

	// reconcileMaxChecks bounds the polling. A transaction absent after this
	// many checks expired with its blockhash and will never land.
	reconcileMaxChecks = 10
)

// ReconcileSubmissionWorkflow settles a submission whose confirmation window
// closed without an answer. It re-checks the signature on a slow cadence until
// the transaction is seen confirmed, seen failed, or has been absent long
// enough that its blockhash can no longer be valid. The settled outcome is
// published to the entry event stream so downstream consumers converge on the
// truth that the synchronous path could not provide.
func ReconcileSubmissionWorkflow(ctx workflow.Context, input ReconcileSubmissionInput) (*ReconcileSubmissionResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ReconcileSubmissionWorkflow started",
		"signature", input.Signature,
		"entry_address", input.EntryAddress,
	)

	result := &ReconcileSubmissionResult{
		Signature: input.Signature,
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	status := nats.EntryStatusTimeout
	for check := 0; check < reconcileMaxChecks; check++ {
		var checkResult *CheckSignatureStatusResult
		err := workflow.ExecuteActivity(ctx, a.CheckSignatureStatus, CheckSignatureStatusInput{
			Signature: input.Signature,
		}).Get(ctx, &checkResult)
		if err != nil {
			errMsg := err.Error()
			result.Error = &errMsg
			return result, err
		}

		if checkResult.Found && checkResult.Failed {
			status = nats.EntryStatusFailed
			logger.Info("submission reconciled as failed",
				"signature", input.Signature,
				"raw_error", checkResult.RawError,
			)
			break
		}
		if checkResult.Found && checkResult.Confirmed {
			status = nats.EntryStatusConfirmed
			logger.Info("submission reconciled as confirmed", "signature", input.Signature)
			break
		}

		// Absent, or landed but not yet at commitment.
		if check < reconcileMaxChecks-1 {
			if err := workflow.Sleep(ctx, reconcilePollInterval); err != nil {
				return result, err
			}
		}
	}

	if status == nats.EntryStatusTimeout {
		// Never seen: the blockhash has long expired and the transaction
		// cannot land anymore. The nonce stays burned either way.
		status = nats.EntryStatusFailed
		logger.Warn("submission never landed, reconciled as failed", "signature", input.Signature)
	}

	err := workflow.ExecuteActivity(ctx, a.PublishOutcome, PublishOutcomeInput{
		Entry:  input,
		Status: status,
	}).Get(ctx, nil)
	if err != nil {
		errMsg := err.Error()
		result.Error = &errMsg
		return result, err
	}

	result.Status = status
	result.ResolvedAt = workflow.Now(ctx)
	return result, nil
}
