package integration

import (
	"context"
	"sync"
	"testing"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/storage/memory"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/apperror"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLedger builds the full service stack on the in-memory store with
// miniredis backing transfer replay protection.
func testLedger(t *testing.T) (*service.Engines, *memory.WalletStore) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := redisStorage.NewTransferCache(client)

	store := memory.NewWalletStore()
	cfg := config.LedgerConfig{
		Apikey:         "sk_integration",
		Currency:       "CHF",
		AllowMaxAmount: 100000,
		HoldDays:       30,
	}
	return service.NewEngines(store, cache, cfg, zerolog.Nop()), store
}

func mustCreate(t *testing.T, e *service.Engines, owner int64, email string, gift bool) *domain.Wallet {
	t.Helper()
	w, err := e.Wallets.Create(context.Background(), service.CreateWalletInput{
		OwnerID:     owner,
		Email:       email,
		Description: "integration wallet",
		Giftcode:    gift,
	})
	require.NoError(t, err)
	return w
}

func mustBalance(t *testing.T, store *memory.WalletStore, wid string) domain.Amount {
	t.Helper()
	w, err := store.FindOne(context.Background(), ports.WalletQuery{Wid: wid})
	require.NoError(t, err)
	require.NotNil(t, w)
	return *w.Balance
}

// settle credits the wallet through an inbound bank transfer so the
// document keeps a valid signature and history.
func settle(t *testing.T, e *service.Engines, wid string, amount domain.Amount) {
	t.Helper()
	_, err := e.Transfers.Create(context.Background(), wid, service.TransferInput{
		Amount: amount,
		Type:   domain.TransferCredit,
	}, service.TransferDestination{Bank: &service.BankDestination{
		IBAN: "CH9300762011623852957",
		Name: "Funding Source",
	}})
	require.NoError(t, err)
}

func TestChargeLifecycle(t *testing.T) {
	ctx := context.Background()
	e, store := testLedger(t)

	w := mustCreate(t, e, 1, "merchant@example.com", false)
	settle(t, e, w.Wid, 20000)

	trx, err := e.Transactions.Authorize(ctx, w.Wid, service.AuthorizeInput{Amount: 8000, Description: "order 42"})
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(20000), mustBalance(t, store, w.Wid), "a hold reserves without debiting")

	partial := domain.Amount(6500)
	_, err = e.Transactions.Capture(ctx, w.Wid, trx.ID, &partial)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(13500), mustBalance(t, store, w.Wid))

	refund := domain.Amount(1500)
	_, err = e.Transactions.Refund(ctx, w.Wid, trx.ID, &refund)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(15000), mustBalance(t, store, w.Wid))

	// The history keeps every step, most recent first.
	got, err := e.Transactions.Get(ctx, w.Wid, trx.ID)
	require.NoError(t, err)
	require.Len(t, got.Logs, 3)
	assert.Contains(t, got.Logs[0], "refund 15.00 CHF")
	assert.Contains(t, got.Logs[1], "capture 65.00 CHF")
	assert.Contains(t, got.Logs[2], "authorize 80.00 CHF")
}

func TestTransferAndReversalAcrossWallets(t *testing.T) {
	ctx := context.Background()
	e, store := testLedger(t)

	a := mustCreate(t, e, 1, "alice@example.com", false)
	b := mustCreate(t, e, 2, "bob@example.com", false)
	settle(t, e, a.Wid, 5000)
	settle(t, e, b.Wid, 1000)

	tr, err := e.Transfers.Create(ctx, a.Wid, service.TransferInput{
		Amount: 1000,
		Type:   domain.TransferDebit,
		Refid:  "invoice-9",
	}, service.TransferDestination{Wallet: b.Wid})
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(4000), mustBalance(t, store, a.Wid))
	assert.Equal(t, domain.Amount(2000), mustBalance(t, store, b.Wid))

	// Retrying the same refid is a no-op replay.
	again, err := e.Transfers.Create(ctx, a.Wid, service.TransferInput{
		Amount: 1000,
		Type:   domain.TransferDebit,
		Refid:  "invoice-9",
	}, service.TransferDestination{Wallet: b.Wid})
	require.NoError(t, err)
	assert.Equal(t, tr.ID, again.ID)
	assert.Equal(t, domain.Amount(4000), mustBalance(t, store, a.Wid))

	_, err = e.Transfers.Cancel(ctx, a.Wid, tr.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(5000), mustBalance(t, store, a.Wid))
	assert.Equal(t, domain.Amount(1000), mustBalance(t, store, b.Wid))

	total := mustBalance(t, store, a.Wid) + mustBalance(t, store, b.Wid)
	assert.Equal(t, domain.Amount(6000), total, "value is conserved across the pair")
}

func TestGiftCardClaimFlow(t *testing.T) {
	ctx := context.Background()
	e, store := testLedger(t)

	owner := mustCreate(t, e, 7, "claimer@example.com", false)
	gift := mustCreate(t, e, 0, "giftpool@example.com", true)
	settle(t, e, gift.Wid, 3000)

	found, err := e.Giftcodes.RetrieveByCard(ctx, gift.Card.Number)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(3000), *found.Balance)

	_, err = e.Giftcodes.Transfer(ctx, owner.Wid, service.GiftCardInput{Number: gift.Card.Number})
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(3000), mustBalance(t, store, owner.Wid))
	assert.Equal(t, domain.Amount(0), mustBalance(t, store, gift.Wid))

	// Second claim attempts fail and move nothing.
	_, err = e.Giftcodes.Transfer(ctx, owner.Wid, service.GiftCardInput{Number: gift.Card.Number})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	assert.Equal(t, domain.Amount(3000), mustBalance(t, store, owner.Wid))
}

func TestConcurrentChargesSerializeOnLock(t *testing.T) {
	ctx := context.Background()
	e, store := testLedger(t)

	w := mustCreate(t, e, 1, "busy@example.com", false)
	settle(t, e, w.Wid, 10000)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.Transactions.Authorize(ctx, w.Wid, service.AuthorizeInput{Amount: 100, Captured: true})
			results[i] = err
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperror.IsKind(err, apperror.KindConflict), "losers fail with lock contention, not corruption")
	}
	require.GreaterOrEqual(t, succeeded, 1)

	stored, err := store.FindOne(ctx, ports.WalletQuery{Wid: w.Wid})
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(10000)-domain.Amount(succeeded*100), *stored.Balance)
	assert.Len(t, stored.Transactions, succeeded)
	assert.Equal(t, int64(0), stored.IsLocked, "every path released the lock")
	assert.True(t, e.Signer.Verify(stored))
}

func TestTamperedDocumentIsFrozen(t *testing.T) {
	ctx := context.Background()
	e, store := testLedger(t)

	w := mustCreate(t, e, 1, "victim@example.com", false)
	settle(t, e, w.Wid, 5000)

	// Out-of-band balance edit without re-signing.
	raw, err := store.FindOne(ctx, ports.WalletQuery{Wid: w.Wid})
	require.NoError(t, err)
	*raw.Balance = 999999
	require.NoError(t, store.Save(ctx, raw))

	_, err = e.Transactions.Authorize(ctx, w.Wid, service.AuthorizeInput{Amount: 100})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindIntegrity))

	_, err = e.Transfers.Create(ctx, w.Wid, service.TransferInput{Amount: 100, Type: domain.TransferDebit},
		service.TransferDestination{Bank: &service.BankDestination{IBAN: "CH9300762011623852957", Name: "X"}})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindIntegrity))
}
