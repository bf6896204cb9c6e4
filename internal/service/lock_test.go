package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
)

func TestLockManager_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngines(t)
	w := createWallet(t, e, 1, "a@example.com")
	q := ports.WalletQuery{Wid: w.Wid, Apikey: testApikey}

	locked, err := e.Locks.Acquire(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(1), locked.IsLocked)
	assert.NotEmpty(t, locked.Apikey, "locked documents are unredacted")

	e.Locks.ReleaseBracket(ctx, q, true)

	stored, err := store.FindOne(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.IsLocked)
}

func TestLockManager_Contention(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngines(t)
	w := createWallet(t, e, 1, "a@example.com")
	q := ports.WalletQuery{Wid: w.Wid, Apikey: testApikey}

	_, err := e.Locks.Acquire(ctx, q)
	require.NoError(t, err)

	_, err = e.Locks.Acquire(ctx, q)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))

	// The failed acquire still moved the counter; its bracket brings
	// it back down and the holder's release frees the wallet.
	e.Locks.ReleaseBracket(ctx, q, false)
	e.Locks.ReleaseBracket(ctx, q, true)

	stored, err := store.FindOne(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.IsLocked)

	_, err = e.Locks.Acquire(ctx, q)
	assert.NoError(t, err)
}

func TestLockManager_StrictLocking(t *testing.T) {
	ctx := context.Background()
	store := memory.NewWalletStore()
	cfg := testConfig()
	cfg.StrictLocking = true
	e := NewEngines(store, nil, cfg, zerolog.Nop())

	w := createWallet(t, e, 1, "a@example.com")
	q := ports.WalletQuery{Wid: w.Wid, Apikey: testApikey}

	_, err := e.Locks.Acquire(ctx, q)
	require.NoError(t, err)

	_, err = e.Locks.Acquire(ctx, q)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))

	// A failed strict acquire must not release the holder's lock.
	e.Locks.ReleaseBracket(ctx, q, false)
	stored, err := store.FindOne(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.IsLocked)

	e.Locks.ReleaseBracket(ctx, q, true)
	stored, err = store.FindOne(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.IsLocked)
}

func TestLockManager_AcquireUnknownWallet(t *testing.T) {
	e, _ := newTestEngines(t)
	_, err := e.Locks.Acquire(context.Background(), ports.WalletQuery{Wid: "wa_absent", Apikey: testApikey})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestLockManager_RejectsForeignWallet(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngines(t)
	w := createWallet(t, e, 1, "a@example.com")

	q := ports.WalletQuery{Wid: w.Wid, Apikey: "sk_other_deployment"}
	_, err := e.Locks.Acquire(ctx, q)
	defer e.Locks.ReleaseBracket(ctx, q, false)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindIntegrity))
}

func TestLockManager_RejectsTamperedWallet(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngines(t)
	w := createWallet(t, e, 1, "a@example.com")
	q := ports.WalletQuery{Wid: w.Wid, Apikey: testApikey}

	// Mutate the stored balance without re-signing.
	raw, err := store.FindOne(ctx, q)
	require.NoError(t, err)
	*raw.Balance += 999999
	require.NoError(t, store.Save(ctx, raw))

	_, err = e.Locks.Acquire(ctx, q)
	defer e.Locks.ReleaseBracket(ctx, q, false)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindIntegrity))
}

func TestLockManager_RejectsIncompleteWallet(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngines(t)
	w := createWallet(t, e, 1, "a@example.com")
	q := ports.WalletQuery{Wid: w.Wid, Apikey: testApikey}

	raw, err := store.FindOne(ctx, q)
	require.NoError(t, err)
	raw.Balance = nil
	require.NoError(t, e.Locks.SignAndSave(ctx, raw))

	_, err = e.Locks.Acquire(ctx, q)
	defer e.Locks.ReleaseBracket(ctx, q, false)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindIntegrity))
}

func TestLockManager_MutateSignsAndReleases(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngines(t)
	w := createWallet(t, e, 1, "a@example.com")
	q := ports.WalletQuery{Wid: w.Wid, Apikey: testApikey}

	_, err := e.Locks.Mutate(ctx, q, func(w *domain.Wallet) error {
		w.Description = "updated"
		return nil
	})
	require.NoError(t, err)

	stored, err := store.FindOne(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "updated", stored.Description)
	assert.Equal(t, int64(0), stored.IsLocked)
	assert.True(t, e.Signer.Verify(stored), "saved documents verify")
}
