package nats

import (
	"time"
)

// Entry event statuses. "timeout" means the submission's fate is unknown and a
// later reconciliation event will settle it.
const (
	EntryStatusConfirmed = "confirmed"
	EntryStatusFailed    = "failed"
	EntryStatusTimeout   = "timeout"
)

// EntryEvent represents an entry submission outcome published to NATS.
// This is published to the subject "entries.{user_wallet}" in JetStream.
type EntryEvent struct {
	// Transaction identifiers. Signature is empty when the submission was
	// rejected before a transaction left the process.
	Signature    string `json:"signature,omitempty"`
	EntryAddress string `json:"entry_address"`

	// Wallet information
	UserWallet string `json:"user_wallet"` // beneficiary credited with the entry
	Payer      string `json:"payer"`       // signer that funded the entry

	// Entry details
	Nonce    uint64 `json:"nonce"`
	Amount   uint64 `json:"amount"`
	BountyID *uint8 `json:"bounty_id,omitempty"`
	Status   string `json:"status"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}
