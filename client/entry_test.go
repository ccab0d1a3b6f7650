package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitEntry_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/entries", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		err := json.NewDecoder(r.Body).Decode(&body)
		require.NoError(t, err)
		assert.Equal(t, "wallet123", body["user_wallet"])
		assert.Equal(t, float64(500), body["amount"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(EntryResult{
			Signature:    "5sig",
			EntryAddress: "entry111",
			Nonce:        7,
			Status:       "confirmed",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	result, err := client.SubmitEntry(context.Background(), EntryRequest{
		UserWallet: "wallet123",
		Amount:     500,
	})
	require.NoError(t, err)
	assert.Equal(t, "5sig", result.Signature)
	assert.Equal(t, uint64(7), result.Nonce)
	assert.Equal(t, "confirmed", result.Status)
}

func TestSubmitEntry_Conflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "entry already exists for this nonce",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.SubmitEntry(context.Background(), EntryRequest{UserWallet: "wallet123", Amount: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry already exists")
}

func TestSubmitEntry_TimeoutCarriesResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGatewayTimeout)
		json.NewEncoder(w).Encode(map[string]any{
			"error":         "confirmation timed out, transaction fate unknown",
			"signature":     "5sig",
			"entry_address": "entry111",
			"nonce":         7,
			"status":        "timeout",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	result, err := client.SubmitEntry(context.Background(), EntryRequest{UserWallet: "wallet123", Amount: 1})
	require.Error(t, err)

	// The result still comes back so the caller can follow up.
	require.NotNil(t, result)
	assert.Equal(t, "5sig", result.Signature)
	assert.Equal(t, "entry111", result.EntryAddress)
}

func TestGetNonce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/wallets/wallet123/nonce", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(NonceInfo{
			WalletAddress: "wallet123",
			CurrentNonce:  4,
			NextNonce:     5,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	info, err := client.GetNonce(context.Background(), "wallet123")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), info.CurrentNonce)
	assert.Equal(t, uint64(5), info.NextNonce)
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	assert.NoError(t, client.Health(context.Background()))
}
