package service

import (
	"github.com/rs/zerolog"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/ident"
	"wallet-ledger/pkg/logger"
)

// Engines bundles the ledger's services wired against one store and
// one deployment configuration.
type Engines struct {
	Wallets      *WalletService
	Transactions *TransactionService
	Transfers    *TransferService
	Giftcodes    *GiftcodeService

	Locks  *LockManager
	Signer *WalletSigner
}

// NewEngines wires the full service graph. cache may be nil, which
// disables transfer replay protection.
func NewEngines(store ports.WalletStore, cache ports.TransferCache, cfg config.LedgerConfig, log zerolog.Logger) *Engines {
	signer := NewWalletSigner(cfg.Apikey)
	locks := NewLockManager(store, signer, cfg, logger.Component(log, "locks"))
	ids := ident.NewGenerator(cfg.Apikey)
	valid := NewValidator()

	transfers := NewTransferService(locks, store, cache, ids, valid, cfg, logger.Component(log, "transfers"))
	return &Engines{
		Wallets:      NewWalletService(store, locks, ids, valid, cfg, logger.Component(log, "wallets")),
		Transactions: NewTransactionService(locks, store, ids, cfg, logger.Component(log, "transactions")),
		Transfers:    transfers,
		Giftcodes:    NewGiftcodeService(store, locks, transfers, cfg, logger.Component(log, "giftcodes")),
		Locks:        locks,
		Signer:       signer,
	}
}
