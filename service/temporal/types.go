package temporal

import "time"

// ReconcileSubmissionInput identifies a submission whose confirmation window
// closed without a definite outcome.
type ReconcileSubmissionInput struct {
	Signature    string `json:"signature"`
	UserWallet   string `json:"user_wallet"`
	EntryAddress string `json:"entry_address"`
	Nonce        uint64 `json:"nonce"`
	Amount       uint64 `json:"amount"`
	BountyID     *uint8 `json:"bounty_id,omitempty"`
}

// ReconcileSubmissionResult is the settled outcome of a reconciliation run.
type ReconcileSubmissionResult struct {
	Signature  string    `json:"signature"`
	Status     string    `json:"status"` // confirmed, failed, or timeout if still unresolved
	ResolvedAt time.Time `json:"resolved_at"`
	Error      *string   `json:"error,omitempty"`
}

// CheckSignatureStatusInput asks for the current fate of a signature.
type CheckSignatureStatusInput struct {
	Signature string `json:"signature"`
}

// CheckSignatureStatusResult reports what the chain knows about a signature.
type CheckSignatureStatusResult struct {
	Found     bool   `json:"found"`
	Confirmed bool   `json:"confirmed"`
	Failed    bool   `json:"failed"`
	RawError  string `json:"raw_error,omitempty"`
}

// PublishOutcomeInput carries a settled entry outcome to the event stream.
type PublishOutcomeInput struct {
	Entry  ReconcileSubmissionInput `json:"entry"`
	Status string                   `json:"status"`
}
