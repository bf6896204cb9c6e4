package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
)

const testApikey = "sk_test_ledger"

func testConfig() config.LedgerConfig {
	return config.LedgerConfig{
		Apikey:         testApikey,
		Currency:       "CHF",
		AllowMaxAmount: 100000,
		HoldDays:       30,
	}
}

func newTestEngines(t *testing.T) (*Engines, *memory.WalletStore) {
	t.Helper()
	store := memory.NewWalletStore()
	return NewEngines(store, nil, testConfig(), zerolog.Nop()), store
}

func createWallet(t *testing.T, e *Engines, owner int64, email string) *domain.Wallet {
	t.Helper()
	w, err := e.Wallets.Create(context.Background(), CreateWalletInput{
		OwnerID:     owner,
		Email:       email,
		Description: "test wallet",
	})
	require.NoError(t, err)
	return w
}

func createGiftWallet(t *testing.T, e *Engines, owner int64, email string) *domain.Wallet {
	t.Helper()
	w, err := e.Wallets.Create(context.Background(), CreateWalletInput{
		OwnerID:     owner,
		Email:       email,
		Description: "gift card",
		Giftcode:    true,
	})
	require.NoError(t, err)
	return w
}

// fund raises the wallet balance directly in the store and re-signs it,
// the test stand-in for an inbound settlement.
func fund(t *testing.T, e *Engines, store *memory.WalletStore, wid string, amount domain.Amount) {
	t.Helper()
	ctx := context.Background()
	w, err := store.FindOne(ctx, ports.WalletQuery{Wid: wid})
	require.NoError(t, err)
	require.NotNil(t, w)
	*w.Balance += amount
	require.NoError(t, e.Locks.SignAndSave(ctx, w))
}

func amountOf(a int64) *domain.Amount {
	v := domain.Amount(a)
	return &v
}

func balanceOf(t *testing.T, store *memory.WalletStore, wid string) domain.Amount {
	t.Helper()
	w, err := store.FindOne(context.Background(), ports.WalletQuery{Wid: wid})
	require.NoError(t, err)
	require.NotNil(t, w)
	require.NotNil(t, w.Balance)
	return *w.Balance
}
