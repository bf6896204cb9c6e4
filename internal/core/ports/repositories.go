package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"
)

// WalletQuery selects a single wallet document. Zero-valued fields are
// ignored; set fields are combined with AND.
type WalletQuery struct {
	Wid        string
	CardNumber string
	OwnerID    *int64
	Giftcode   *bool
	Apikey     string
}

// WalletFilter selects a set of wallets for listing.
type WalletFilter struct {
	Apikey   string
	Giftcode bool

	// EmailContains matches case-insensitively anywhere in the email.
	EmailContains string
	OwnerID       *int64

	// Balance bounds in minor units, exclusive.
	BalanceGT *domain.Amount
	BalanceLT *domain.Amount
}

// WalletStore is the persistence port for wallet documents. Lookups
// return nil, nil when no document matches. Implementations must hand
// out copies: mutating a returned wallet has no effect until Save.
//
// IncrementLock and TryLock return the post-update document including
// the normally-hidden fields (signature, gift flag, lock counter); they
// are the only operations allowed to move the lock counter, and Save
// must never write it.
type WalletStore interface {
	Insert(ctx context.Context, w *domain.Wallet) error
	FindOne(ctx context.Context, q WalletQuery) (*domain.Wallet, error)
	Find(ctx context.Context, f WalletFilter) ([]*domain.Wallet, error)

	// IncrementLock atomically adds delta to the matched document's
	// lock counter and returns the post-increment document.
	IncrementLock(ctx context.Context, q WalletQuery, delta int64) (*domain.Wallet, error)

	// TryLock flips the lock counter from 0 to 1 atomically. It returns
	// nil, nil when the document is absent or already locked.
	TryLock(ctx context.Context, q WalletQuery) (*domain.Wallet, error)

	// Save persists every business field of the wallet, keyed by wid.
	Save(ctx context.Context, w *domain.Wallet) error
}

// TransferCache is the replay-protection port for transfer creation:
// a transfer recorded under a caller-supplied refid is returned as-is
// when the same refid is submitted again.
type TransferCache interface {
	// Get returns the recorded transfer payload, or nil, nil on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
