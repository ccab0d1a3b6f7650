package solana

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors forming the closed taxonomy that callers match with errors.Is.
// Raw RPC errors never escape this package; they are classified here first.
var (
	// ErrAddressSpaceExhausted means no valid bump was found for a seed tuple.
	// This signals a caller error (bad seeds), never a transient fault.
	ErrAddressSpaceExhausted = errors.New("address derivation exhausted bump search space")

	// ErrAccountAlreadyExists means the target account is already initialized
	// on-chain. For entry accounts this is the double-submission defense
	// firing; for token accounts it means a racing creator won and the
	// condition is treated as success by the resolver.
	ErrAccountAlreadyExists = errors.New("account already exists on-chain")

	// ErrBlockhashExpired means the recent blockhash embedded in the signed
	// transaction fell out of the validity window before the transaction
	// landed. This is the only automatically retried condition.
	ErrBlockhashExpired = errors.New("transaction blockhash expired")

	// ErrConfirmationTimeout means the transaction was submitted but did not
	// reach the required commitment level within the deadline. The transaction
	// may still land later; callers must treat this as unknown, not failed.
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
)

// SubmissionRejectedError is a terminal program-level rejection (simulation or
// execution failure). The raw payload is preserved for diagnostics.
type SubmissionRejectedError struct {
	Raw string
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("transaction rejected by program: %s", e.Raw)
}

// classifySendError maps a raw send/simulate error from the RPC layer into the
// taxonomy above. Matching is on the node's error strings because the JSON-RPC
// layer does not expose structured error codes for these conditions.
func classifySendError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "blockhash not found"),
		strings.Contains(msg, "blockhashnotfound"):
		return ErrBlockhashExpired
	case strings.Contains(msg, "already in use"),
		strings.Contains(msg, "already exists"),
		strings.Contains(msg, "already been initialized"):
		return ErrAccountAlreadyExists
	default:
		return &SubmissionRejectedError{Raw: err.Error()}
	}
}

// classifyExecutionError maps the error value reported by getSignatureStatuses
// for a landed-but-failed transaction. The value is an opaque JSON structure,
// so it is stringified before matching.
func classifyExecutionError(txErr any) error {
	msg := strings.ToLower(fmt.Sprintf("%v", txErr))
	if strings.Contains(msg, "already in use") || strings.Contains(msg, "already exists") {
		return ErrAccountAlreadyExists
	}
	return &SubmissionRejectedError{Raw: fmt.Sprintf("%v", txErr)}
}
