// Package client is the Go client for the entrygate HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// EntryRequest describes one lottery entry to submit.
type EntryRequest struct {
	UserWallet string  `json:"user_wallet"`
	Amount     uint64  `json:"amount"`
	BountyID   *uint8  `json:"bounty_id,omitempty"`
	NonceHint  *uint64 `json:"nonce_hint,omitempty"`
}

// EntryResult is the server's report of where an entry landed.
type EntryResult struct {
	Signature    string `json:"signature,omitempty"`
	EntryAddress string `json:"entry_address"`
	Nonce        uint64 `json:"nonce"`
	Status       string `json:"status"`
}

// NonceInfo reports a wallet's nonce counter state.
type NonceInfo struct {
	WalletAddress string `json:"wallet_address"`
	CurrentNonce  uint64 `json:"current_nonce"`
	NextNonce     uint64 `json:"next_nonce"`
}

// Client is the HTTP client for the entrygate service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new entrygate service client. Submissions block on
// on-chain confirmation, so the default timeout is generous.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 3 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// SubmitEntry submits a lottery entry and waits for the outcome.
//
// A gateway-timeout response still carries a result: the transaction's fate is
// unknown and the caller gets the signature and entry address to follow up
// with, alongside the returned error.
func (c *Client) SubmitEntry(ctx context.Context, req EntryRequest) (*EntryResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/entries", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var result EntryResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		c.logger.Debug("entry submitted",
			"wallet", req.UserWallet,
			"signature", result.Signature,
			"nonce", result.Nonce,
		)
		return &result, nil

	case http.StatusGatewayTimeout:
		var result EntryResult
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &result); err != nil || result.EntryAddress == "" {
			return nil, fmt.Errorf("confirmation timed out: %s", string(raw))
		}
		return &result, fmt.Errorf("confirmation timed out, transaction fate unknown (signature %s)", result.Signature)

	default:
		return nil, c.parseErrorResponse(resp)
	}
}

// GetNonce retrieves a wallet's nonce counter state.
func (c *Client) GetNonce(ctx context.Context, walletAddress string) (*NonceInfo, error) {
	u := fmt.Sprintf("%s/api/v1/wallets/%s/nonce", c.baseURL, url.PathEscape(walletAddress))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var info NonceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &info, nil
}

// Health checks whether the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
