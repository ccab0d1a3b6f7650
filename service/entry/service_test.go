package entry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billions-bounty/entrygate/service/nats"
	"github.com/billions-bounty/entrygate/service/nonce"
	solsvc "github.com/billions-bounty/entrygate/service/solana"
	"github.com/billions-bounty/entrygate/service/temporal"
)

// mockRPC implements solsvc.RPCClient with per-method hooks.
type mockRPC struct {
	getLatestBlockhashFunc   func(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	getAccountInfoFunc       func(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	sendTransactionFunc      func(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	getSignatureStatusesFunc func(ctx context.Context, searchHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	sendCalls                int
}

func (m *mockRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	if m.getLatestBlockhashFunc != nil {
		return m.getLatestBlockhashFunc(ctx, commitment)
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            solana.Hash(solana.NewWallet().PublicKey()),
			LastValidBlockHeight: 1000,
		},
	}, nil
}

func (m *mockRPC) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	if m.getAccountInfoFunc != nil {
		return m.getAccountInfoFunc(ctx, account, opts)
	}
	return nil, rpc.ErrNotFound
}

func (m *mockRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	m.sendCalls++
	if m.sendTransactionFunc != nil {
		return m.sendTransactionFunc(ctx, tx, opts)
	}
	return solana.Signature{1}, nil
}

func (m *mockRPC) GetSignatureStatuses(ctx context.Context, searchHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	if m.getSignatureStatusesFunc != nil {
		return m.getSignatureStatusesFunc(ctx, searchHistory, sigs...)
	}
	return &rpc.GetSignatureStatusesResult{
		Value: []*rpc.SignatureStatusesResult{
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
		},
	}, nil
}

type testFixture struct {
	svc       *Service
	store     *nonce.MemStore
	publisher *nats.MockPublisher
	mock      *mockRPC
	payer     solana.PrivateKey
	programID solana.PublicKey
	wallet    string
}

// accountsExistExcept makes every account lookup succeed except the listed
// addresses, which report as absent.
func accountsExistExcept(missing ...solana.PublicKey) func(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	return func(_ context.Context, account solana.PublicKey, _ *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
		for _, m := range missing {
			if account.Equals(m) {
				return nil, rpc.ErrNotFound
			}
		}
		return &rpc.GetAccountInfoResult{Value: &rpc.Account{Owner: solana.TokenProgramID}}, nil
	}
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	payerWallet := solana.NewWallet()
	mock := &mockRPC{}
	pipeline := solsvc.NewPipeline(mock, solsvc.PipelineConfig{
		Payer:          payerWallet.PrivateKey,
		ConfirmTimeout: 2 * time.Second,
		PollInterval:   5 * time.Millisecond,
	}, nil, logger)
	resolver := solsvc.NewResolver(pipeline, nil, logger)
	store := nonce.NewMemStore()
	allocator := nonce.NewAllocator(store, nil, logger)
	publisher := nats.NewMockPublisher()
	programID := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	f := &testFixture{
		store:     store,
		publisher: publisher,
		mock:      mock,
		payer:     payerWallet.PrivateKey,
		programID: programID,
		wallet:    solana.NewWallet().PublicKey().String(),
	}
	f.svc = NewService(pipeline, resolver, allocator, publisher, programID, mint, nil, logger)
	return f
}

// entryAddress derives the address the service will use for a given nonce.
func (f *testFixture) entryAddress(t *testing.T, n uint64) solana.PublicKey {
	t.Helper()
	lottery, _, err := solsvc.DeriveLotteryAddress(f.programID)
	require.NoError(t, err)
	addr, _, err := solsvc.DeriveEntryAddress(f.programID, lottery, f.payer.PublicKey(), n)
	require.NoError(t, err)
	return addr
}

func TestSubmitEntry_HappyPath(t *testing.T) {
	f := newFixture(t)
	// Token accounts exist, entry account for nonce 1 does not.
	f.mock.getAccountInfoFunc = accountsExistExcept(f.entryAddress(t, 1))

	res, err := f.svc.SubmitEntry(context.Background(), SubmitEntryParams{
		UserWallet: f.wallet,
		Amount:     10_000_000,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), res.Nonce)
	assert.Equal(t, f.entryAddress(t, 1).String(), res.EntryAddress)
	assert.Equal(t, nats.EntryStatusConfirmed, res.Status)
	assert.NotEmpty(t, res.Signature)
	assert.Equal(t, 1, f.mock.sendCalls)

	events := f.publisher.GetPublishedEventsForWallet(f.wallet)
	require.Len(t, events, 1)
	assert.Equal(t, nats.EntryStatusConfirmed, events[0].Status)
	assert.Equal(t, uint64(1), events[0].Nonce)
	assert.Equal(t, f.payer.PublicKey().String(), events[0].Payer)
}

func TestSubmitEntry_SequentialNonces(t *testing.T) {
	f := newFixture(t)
	f.mock.getAccountInfoFunc = accountsExistExcept(f.entryAddress(t, 1), f.entryAddress(t, 2))

	res, err := f.svc.SubmitEntry(context.Background(), SubmitEntryParams{UserWallet: f.wallet, Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Nonce)

	res, err = f.svc.SubmitEntry(context.Background(), SubmitEntryParams{UserWallet: f.wallet, Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Nonce)
	assert.NotEqual(t, f.entryAddress(t, 1), f.entryAddress(t, 2))
}

func TestSubmitEntry_EntryExistsIsTerminalAndBurnsNonce(t *testing.T) {
	f := newFixture(t)
	// Every account exists, including the entry account for nonce 1.
	f.mock.getAccountInfoFunc = accountsExistExcept()

	_, err := f.svc.SubmitEntry(context.Background(), SubmitEntryParams{UserWallet: f.wallet, Amount: 1})
	assert.ErrorIs(t, err, ErrEntryAlreadyExists)
	assert.Equal(t, 0, f.mock.sendCalls)

	// The occupied address means the nonce cannot be reissued.
	n, err := f.store.CurrentNonce(context.Background(), f.wallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestSubmitEntry_TokenAccountFailureRollsBackNonce(t *testing.T) {
	f := newFixture(t)
	// Entry account absent, token accounts absent, creation rejected.
	f.mock.sendTransactionFunc = func(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
		return solana.Signature{}, errors.New("rpc error: insufficient funds for rent")
	}

	_, err := f.svc.SubmitEntry(context.Background(), SubmitEntryParams{UserWallet: f.wallet, Amount: 1})
	require.Error(t, err)

	// Nothing carrying the nonce left the process and the entry address was
	// confirmed absent, so the nonce comes back.
	n, err := f.store.CurrentNonce(context.Background(), f.wallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func TestSubmitEntry_SubmissionRejectionBurnsNonce(t *testing.T) {
	f := newFixture(t)
	f.mock.getAccountInfoFunc = accountsExistExcept(f.entryAddress(t, 1))
	f.mock.sendTransactionFunc = func(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
		return solana.Signature{}, errors.New("rpc error: custom program error: 0x1771")
	}

	res, err := f.svc.SubmitEntry(context.Background(), SubmitEntryParams{UserWallet: f.wallet, Amount: 1})
	require.Error(t, err)

	var rejected *solsvc.SubmissionRejectedError
	assert.ErrorAs(t, err, &rejected)
	require.NotNil(t, res)
	assert.Equal(t, nats.EntryStatusFailed, res.Status)
	assert.Empty(t, res.Signature)

	// A submission was attempted, so the nonce stays burned.
	n, err := f.store.CurrentNonce(context.Background(), f.wallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestSubmitEntry_ConfirmationTimeoutReturnsSignature(t *testing.T) {
	f := newFixture(t)
	f.mock.getAccountInfoFunc = accountsExistExcept(f.entryAddress(t, 1))
	f.mock.getSignatureStatusesFunc = func(ctx context.Context, searchHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
		return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
	}

	// Shrink the confirmation window for the test.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pipeline := solsvc.NewPipeline(f.mock, solsvc.PipelineConfig{
		Payer:          f.payer,
		ConfirmTimeout: 30 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}, nil, logger)
	resolver := solsvc.NewResolver(pipeline, nil, logger)
	allocator := nonce.NewAllocator(f.store, nil, logger)
	svc := NewService(pipeline, resolver, allocator, f.publisher, f.programID, solana.NewWallet().PublicKey(), nil, logger)

	res, err := svc.SubmitEntry(context.Background(), SubmitEntryParams{UserWallet: f.wallet, Amount: 1})
	assert.ErrorIs(t, err, solsvc.ErrConfirmationTimeout)
	require.NotNil(t, res)
	assert.Equal(t, nats.EntryStatusTimeout, res.Status)
	assert.NotEmpty(t, res.Signature)

	events := f.publisher.GetPublishedEventsForWallet(f.wallet)
	require.Len(t, events, 1)
	assert.Equal(t, nats.EntryStatusTimeout, events[0].Status)
}

// fakeReconciler records reconciliation handoffs.
type fakeReconciler struct {
	scheduled []temporal.ReconcileSubmissionInput
}

func (f *fakeReconciler) ScheduleReconciliation(_ context.Context, input temporal.ReconcileSubmissionInput) error {
	f.scheduled = append(f.scheduled, input)
	return nil
}

func TestSubmitEntry_TimeoutSchedulesReconciliation(t *testing.T) {
	f := newFixture(t)
	f.mock.getAccountInfoFunc = accountsExistExcept(f.entryAddress(t, 1))
	f.mock.getSignatureStatusesFunc = func(ctx context.Context, searchHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
		return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pipeline := solsvc.NewPipeline(f.mock, solsvc.PipelineConfig{
		Payer:          f.payer,
		ConfirmTimeout: 30 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}, nil, logger)
	resolver := solsvc.NewResolver(pipeline, nil, logger)
	allocator := nonce.NewAllocator(f.store, nil, logger)
	reconciler := &fakeReconciler{}
	svc := NewService(pipeline, resolver, allocator, f.publisher, f.programID, solana.NewWallet().PublicKey(), nil, logger).
		WithReconciler(reconciler)

	res, err := svc.SubmitEntry(context.Background(), SubmitEntryParams{UserWallet: f.wallet, Amount: 7})
	require.ErrorIs(t, err, solsvc.ErrConfirmationTimeout)

	require.Len(t, reconciler.scheduled, 1)
	handoff := reconciler.scheduled[0]
	assert.Equal(t, res.Signature, handoff.Signature)
	assert.Equal(t, res.EntryAddress, handoff.EntryAddress)
	assert.Equal(t, res.Nonce, handoff.Nonce)
	assert.Equal(t, uint64(7), handoff.Amount)
}

func TestSubmitEntry_NonceHintMismatchStillSubmits(t *testing.T) {
	f := newFixture(t)
	f.mock.getAccountInfoFunc = accountsExistExcept(f.entryAddress(t, 1))

	hint := uint64(99)
	res, err := f.svc.SubmitEntry(context.Background(), SubmitEntryParams{
		UserWallet: f.wallet,
		Amount:     1,
		NonceHint:  &hint,
	})
	require.NoError(t, err)

	// The allocated value wins over the stale hint.
	assert.Equal(t, uint64(1), res.Nonce)
}

func TestSubmitEntry_BountySelectsDistinctLottery(t *testing.T) {
	f := newFixture(t)

	bounty := uint8(2)
	lottery, _, err := solsvc.DeriveLotteryAddressForBounty(f.programID, bounty)
	require.NoError(t, err)
	bountyEntry, _, err := solsvc.DeriveEntryAddress(f.programID, lottery, f.payer.PublicKey(), 1)
	require.NoError(t, err)

	f.mock.getAccountInfoFunc = accountsExistExcept(bountyEntry)

	res, err := f.svc.SubmitEntry(context.Background(), SubmitEntryParams{
		UserWallet: f.wallet,
		Amount:     1,
		BountyID:   &bounty,
	})
	require.NoError(t, err)
	assert.Equal(t, bountyEntry.String(), res.EntryAddress)
	assert.NotEqual(t, f.entryAddress(t, 1).String(), res.EntryAddress)
}

func TestSubmitEntry_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitEntry(ctx, SubmitEntryParams{UserWallet: f.wallet, Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = f.svc.SubmitEntry(ctx, SubmitEntryParams{UserWallet: "not-a-wallet", Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidParams)

	bad := uint8(9)
	_, err = f.svc.SubmitEntry(ctx, SubmitEntryParams{UserWallet: f.wallet, Amount: 1, BountyID: &bad})
	assert.ErrorIs(t, err, ErrInvalidParams)

	// Validation failures never touch the nonce counter.
	n, err := f.store.CurrentNonce(ctx, f.wallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}
