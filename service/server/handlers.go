package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/billions-bounty/entrygate/service/entry"
	"github.com/billions-bounty/entrygate/service/nonce"
	solsvc "github.com/billions-bounty/entrygate/service/solana"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - plenty for an entry request
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// submitEntryRequest is the JSON body for POST /api/v1/entries.
type submitEntryRequest struct {
	UserWallet string  `json:"user_wallet"`
	Amount     uint64  `json:"amount"`
	BountyID   *uint8  `json:"bounty_id,omitempty"`
	NonceHint  *uint64 `json:"nonce_hint,omitempty"`
}

// handleSubmitEntry returns a handler that submits a lottery entry on-chain.
// POST /api/v1/entries
//
// The handler blocks until the transaction confirms, fails, or the
// confirmation window closes. A 504 response still carries the signature and
// entry address: the transaction may land after the window, and the client
// needs them to follow up.
func handleSubmitEntry(svc *entry.Service, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req submitEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeError(w, "request body too large", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := validateAddress(req.UserWallet); err != nil {
			logger.Debug("invalid user wallet", "address", req.UserWallet, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := svc.SubmitEntry(r.Context(), entry.SubmitEntryParams{
			UserWallet: req.UserWallet,
			Amount:     req.Amount,
			BountyID:   req.BountyID,
			NonceHint:  req.NonceHint,
		})
		if err != nil {
			writeSubmitError(w, logger, req.UserWallet, result, err)
			return
		}

		writeJSON(w, result, http.StatusCreated)
	})
}

// writeSubmitError maps the submission error taxonomy onto HTTP statuses.
func writeSubmitError(w http.ResponseWriter, logger *slog.Logger, wallet string, result *entry.SubmitEntryResult, err error) {
	var rejected *solsvc.SubmissionRejectedError

	switch {
	case errors.Is(err, entry.ErrInvalidParams):
		writeError(w, err.Error(), http.StatusBadRequest)

	case errors.Is(err, entry.ErrEntryAlreadyExists):
		logger.Warn("entry conflict", "wallet", wallet, "error", err)
		writeError(w, "entry already exists for this nonce", http.StatusConflict)

	case errors.Is(err, solsvc.ErrConfirmationTimeout):
		// Token account setup can also time out, before any entry result
		// exists. Only the entry submission itself has follow-up material.
		if result == nil {
			writeError(w, "confirmation timed out during account setup", http.StatusGatewayTimeout)
			return
		}
		// Outcome unknown; hand the client everything needed to follow up.
		logger.Warn("entry confirmation timed out", "wallet", wallet, "signature", result.Signature)
		writeJSON(w, map[string]any{
			"error":         "confirmation timed out, transaction fate unknown",
			"signature":     result.Signature,
			"entry_address": result.EntryAddress,
			"nonce":         result.Nonce,
			"status":        result.Status,
		}, http.StatusGatewayTimeout)

	case errors.As(err, &rejected):
		logger.Error("entry rejected on-chain", "wallet", wallet, "error", err)
		writeError(w, "transaction rejected: "+rejected.Raw, http.StatusBadGateway)

	default:
		logger.Error("entry submission failed", "wallet", wallet, "error", err)
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}

// handleGetCurrentNonce returns a handler that reports a wallet's highest
// issued nonce. Clients may use it to pre-fill the advisory nonce hint.
// GET /api/v1/wallets/{address}/nonce
func handleGetCurrentNonce(store nonce.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			logger.Debug("invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		current, err := store.CurrentNonce(r.Context(), address)
		if err != nil {
			logger.Error("failed to read nonce", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]any{
			"wallet_address": address,
			"current_nonce":  current,
			"next_nonce":     current + 1,
		}, http.StatusOK)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates a wallet address for format and length.
func validateAddress(address string) error {
	if address == "" {
		return errors.New("address is required")
	}
	if len(address) > maxAddressLength {
		return errors.New("address too long")
	}
	if !validAddressRegex.MatchString(address) {
		return errors.New("address contains invalid characters")
	}
	return nil
}
