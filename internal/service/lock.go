package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
)

// LockManager serializes mutations on a wallet document through the
// persisted lock counter and runs the integrity gates every mutation
// must pass after acquisition.
//
// Two acquisition schemes exist. The lenient default increments the
// counter unconditionally and fails when the result is above one; the
// counter stays elevated on a failed acquire, and the surrounding
// bracket decrements it either way. Strict mode flips the counter from
// zero to one atomically and releases only what it acquired.
type LockManager struct {
	store  ports.WalletStore
	signer *WalletSigner
	cfg    config.LedgerConfig
	log    zerolog.Logger
}

func NewLockManager(store ports.WalletStore, signer *WalletSigner, cfg config.LedgerConfig, log zerolog.Logger) *LockManager {
	return &LockManager{store: store, signer: signer, cfg: cfg, log: log}
}

// Acquire takes the wallet lock and returns the full, unredacted
// document after it passes the ownership, signature and completeness
// gates. Callers must pair every Acquire with a ReleaseBracket.
func (m *LockManager) Acquire(ctx context.Context, q ports.WalletQuery) (*domain.Wallet, error) {
	// The lock query matches on identity alone so that a foreign
	// wallet is reported as foreign, not as absent.
	storeQ := q
	storeQ.Apikey = ""

	var w *domain.Wallet
	var err error

	if m.cfg.StrictLocking {
		w, err = m.store.TryLock(ctx, storeQ)
		if err != nil {
			return nil, apperror.StoreError(err)
		}
		if w == nil {
			// Distinguish an absent wallet from a held lock.
			existing, ferr := m.store.FindOne(ctx, storeQ)
			if ferr != nil {
				return nil, apperror.StoreError(ferr)
			}
			if existing == nil {
				return nil, apperror.ErrWalletNotFound()
			}
			m.log.Warn().Str("wid", existing.Wid).Msg("wallet lock contention")
			return nil, apperror.ErrWalletBusy()
		}
	} else {
		w, err = m.store.IncrementLock(ctx, storeQ, 1)
		if err != nil {
			return nil, apperror.StoreError(err)
		}
		if w == nil {
			return nil, apperror.ErrWalletNotFound()
		}
		if w.IsLocked > 1 {
			m.log.Warn().Str("wid", w.Wid).Int64("lock", w.IsLocked).Msg("wallet lock contention")
			return nil, apperror.ErrWalletBusy()
		}
	}

	if q.Apikey != "" && w.Apikey != q.Apikey {
		return nil, apperror.ErrForeignWallet()
	}
	if !m.signer.Verify(w) {
		m.log.Error().Str("wid", w.Wid).Msg("wallet signature mismatch")
		return nil, apperror.ErrTamperedWallet()
	}
	if w.Balance == nil {
		return nil, apperror.ErrIncompleteWallet()
	}
	return w, nil
}

// Release gives the lock back. Failures are logged, not returned: the
// caller's operation already succeeded or failed on its own terms.
func (m *LockManager) Release(ctx context.Context, q ports.WalletQuery) {
	storeQ := q
	storeQ.Apikey = ""
	if _, err := m.store.IncrementLock(ctx, storeQ, -1); err != nil {
		m.log.Warn().Err(err).Str("wid", q.Wid).Msg("wallet unlock failed")
	}
}

// ReleaseBracket closes an Acquire. Under lenient locking the counter
// was moved even when acquisition failed, so it is decremented
// unconditionally; under strict locking only a successful acquire holds
// the lock and releasing after a failure would steal it from the
// current holder.
func (m *LockManager) ReleaseBracket(ctx context.Context, q ports.WalletQuery, acquired bool) {
	if acquired || !m.cfg.StrictLocking {
		m.Release(ctx, q)
	}
}

// SignAndSave refreshes the wallet's signature and update timestamp and
// persists it. The lock counter is not written by Save.
func (m *LockManager) SignAndSave(ctx context.Context, w *domain.Wallet) error {
	sig, err := m.signer.Sign(w)
	if err != nil {
		return apperror.InternalError(err)
	}
	w.Signature = sig
	w.Updated = time.Now()
	if err := m.store.Save(ctx, w); err != nil {
		return apperror.StoreError(err)
	}
	return nil
}

// Mutate runs fn on the locked wallet and persists the result. The
// lock is released whether or not fn succeeds.
func (m *LockManager) Mutate(ctx context.Context, q ports.WalletQuery, fn func(w *domain.Wallet) error) (*domain.Wallet, error) {
	w, err := m.Acquire(ctx, q)
	defer m.ReleaseBracket(ctx, q, err == nil)
	if err != nil {
		return nil, err
	}
	if err := fn(w); err != nil {
		return nil, err
	}
	if err := m.SignAndSave(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}
