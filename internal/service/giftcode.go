package service

import (
	"context"

	"github.com/rs/zerolog"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
)

// GiftcodeService handles gift-card wallets: anonymous prepaid wallets
// looked up by card number whose full balance can be claimed into a
// regular wallet exactly once.
type GiftcodeService struct {
	store     ports.WalletStore
	locks     *LockManager
	transfers *TransferService
	cfg       config.LedgerConfig
	log       zerolog.Logger
}

func NewGiftcodeService(store ports.WalletStore, locks *LockManager, transfers *TransferService, cfg config.LedgerConfig, log zerolog.Logger) *GiftcodeService {
	return &GiftcodeService{store: store, locks: locks, transfers: transfers, cfg: cfg, log: log}
}

// RetrieveByCard looks a gift wallet up by its card number. A card
// that has already been claimed is no longer retrievable.
func (s *GiftcodeService) RetrieveByCard(ctx context.Context, number string) (w *domain.Wallet, err error) {
	gift := true
	q := ports.WalletQuery{CardNumber: number, Apikey: s.cfg.Apikey, Giftcode: &gift}
	locked, err := s.locks.Acquire(ctx, q)
	defer s.locks.ReleaseBracket(ctx, q, err == nil)
	if err != nil {
		return nil, err
	}
	if locked.Card.RegisteredTo != nil {
		return nil, apperror.ErrGiftcodeRegistered()
	}
	return locked.Redacted(), nil
}

// List returns the gift wallets of this deployment matching the
// filter, redacted.
func (s *GiftcodeService) List(ctx context.Context, f ListFilter) ([]*domain.Wallet, error) {
	filter := ports.WalletFilter{
		Apikey:        s.cfg.Apikey,
		Giftcode:      true,
		EmailContains: f.EmailContains,
		OwnerID:       f.OwnerID,
	}
	if f.BalanceGT != nil {
		gt := domain.FromMajor(*f.BalanceGT)
		filter.BalanceGT = &gt
	}
	if f.BalanceLT != nil {
		lt := domain.FromMajor(*f.BalanceLT)
		filter.BalanceLT = &lt
	}
	wallets, err := s.store.Find(ctx, filter)
	if err != nil {
		return nil, apperror.StoreError(err)
	}
	out := make([]*domain.Wallet, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, w.Redacted())
	}
	return out, nil
}

type GiftCardInput struct {
	Number string `validate:"required"`
	Name   string
}

// Transfer claims the gift card's full balance into the wallet wid.
// The claim is a debit transfer from the gift wallet, so both sides
// keep a history record, and a claimed card cannot be claimed again.
func (s *GiftcodeService) Transfer(ctx context.Context, wid string, in GiftCardInput) (*domain.Transfer, error) {
	if in.Number == "" {
		return nil, apperror.ErrInvalidInput(nil)
	}

	target, err := s.store.FindOne(ctx, ports.WalletQuery{Wid: wid})
	if err != nil {
		return nil, apperror.StoreError(err)
	}
	if target == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	if target.Apikey != s.cfg.Apikey {
		return nil, apperror.ErrForeignWallet()
	}

	gift := true
	giftWallet, err := s.store.FindOne(ctx, ports.WalletQuery{CardNumber: in.Number, Apikey: s.cfg.Apikey, Giftcode: &gift})
	if err != nil {
		return nil, apperror.StoreError(err)
	}
	if giftWallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	if giftWallet.Card.RegisteredTo != nil {
		return nil, apperror.ErrGiftcodeRegistered()
	}
	if giftWallet.Balance == nil {
		return nil, apperror.ErrIncompleteWallet()
	}

	t, err := s.transfers.Create(ctx, giftWallet.Wid, TransferInput{
		Amount:      *giftWallet.Balance,
		Type:        domain.TransferDebit,
		Description: "Transfer gift code to " + target.Email,
	}, TransferDestination{Wallet: wid})
	if err != nil {
		return nil, err
	}

	// Mark the card claimed so it cannot be drained twice.
	_, err = s.locks.Mutate(ctx, ports.WalletQuery{Wid: giftWallet.Wid, Apikey: s.cfg.Apikey}, func(w *domain.Wallet) error {
		w.Card.RegisteredTo = target.OwnerID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("wid", wid).Str("gift_wid", giftWallet.Wid).Str("transfer", t.ID).Msg("gift code claimed")
	return t, nil
}
