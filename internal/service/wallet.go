package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/card"
	"wallet-ledger/pkg/ident"
)

// WalletService manages wallet lifecycle: creation, settings updates
// and retrieval. All reads it returns are redacted copies.
type WalletService struct {
	store ports.WalletStore
	locks *LockManager
	ids   ident.Generator
	valid *Validator
	cfg   config.LedgerConfig
	log   zerolog.Logger
}

func NewWalletService(store ports.WalletStore, locks *LockManager, ids ident.Generator, valid *Validator, cfg config.LedgerConfig, log zerolog.Logger) *WalletService {
	return &WalletService{store: store, locks: locks, ids: ids, valid: valid, cfg: cfg, log: log}
}

type ExternalAccountInput struct {
	IBAN     string `validate:"omitempty"`
	BIC      string
	SIC      string
	Account  string
	Name     string
	Address1 string
	Address2 string
}

type CreateWalletInput struct {
	// OwnerID may be zero only for gift wallets, which carry no owner.
	OwnerID         int64
	Email           string `validate:"required,email"`
	Description     string `validate:"required"`
	AmountNegative  domain.Amount
	ExternalAccount *ExternalAccountInput
	Expiry          string // MM/YYYY, empty for the default
	Giftcode        bool
}

// Create provisions a new wallet document with a zero balance and a
// derived virtual card, signs it and stores it. One non-gift wallet
// per owner; gift wallets are unlimited.
func (s *WalletService) Create(ctx context.Context, in CreateWalletInput) (*domain.Wallet, error) {
	if err := s.valid.Struct(in); err != nil {
		return nil, err
	}
	if !in.Giftcode && in.OwnerID == 0 {
		return nil, apperror.ErrInvalidInput(errors.New("an owner id is required for a registered wallet"))
	}
	if in.ExternalAccount != nil && in.ExternalAccount.IBAN != "" && !s.valid.ValidIBAN(in.ExternalAccount.IBAN) {
		return nil, apperror.ErrInvalidIBAN()
	}

	if !in.Giftcode {
		existing, err := s.store.Find(ctx, ports.WalletFilter{Apikey: s.cfg.Apikey, OwnerID: &in.OwnerID})
		if err != nil {
			return nil, apperror.StoreError(err)
		}
		if len(existing) > 0 {
			return nil, apperror.ErrDuplicateWallet()
		}
	}

	now := time.Now()
	expiry := card.DefaultExpiry(now)
	if in.Expiry != "" {
		parsed, ok := card.ParseExpiry(in.Expiry)
		if !ok {
			return nil, apperror.ErrInvalidExpiry(in.Expiry)
		}
		expiry = parsed
	}

	wid := s.ids.WalletID(in.OwnerID)
	number := card.NumberFromWID(wid)
	balance := domain.Amount(0)

	w := &domain.Wallet{
		Wid:            wid,
		Apikey:         s.cfg.Apikey,
		Email:          in.Email,
		Description:    in.Description,
		Balance:        &balance,
		AmountNegative: in.AmountNegative,
		Card: domain.Card{
			Number: number,
			Last4:  card.Last4(number),
			Expiry: expiry,
		},
		TransfersEnabled: true,
		Available:        true,
		Giftcode:         in.Giftcode,
		Transactions:     []domain.Transaction{},
		Transfers:        []domain.Transfer{},
		Created:          now,
		Updated:          now,
	}
	// A gift card carries no owner and stays unregistered until it is
	// claimed.
	if !in.Giftcode {
		owner := in.OwnerID
		w.OwnerID = &owner
		w.Card.RegisteredTo = &owner
	}
	if in.ExternalAccount != nil {
		w.ExternalAccount = &domain.ExternalAccount{
			IBAN:     in.ExternalAccount.IBAN,
			BIC:      in.ExternalAccount.BIC,
			SIC:      in.ExternalAccount.SIC,
			Account:  in.ExternalAccount.Account,
			Name:     slugify(in.ExternalAccount.Name),
			Address1: in.ExternalAccount.Address1,
			Address2: in.ExternalAccount.Address2,
		}
	}

	sig, err := s.locks.signer.Sign(w)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	w.Signature = sig

	if err := s.store.Insert(ctx, w); err != nil {
		return nil, apperror.StoreError(err)
	}
	s.log.Info().Str("wid", wid).Int64("owner_id", in.OwnerID).Bool("giftcode", in.Giftcode).Msg("wallet created")
	return w.Redacted(), nil
}

type UpdateBankInput struct {
	// Name updates the card holder name.
	Name            string
	ExternalAccount *ExternalAccountInput
}

// UpdateBank updates the card holder name and merges the given bank
// coordinates into the wallet's external account. Bank details without
// a raw account number must carry a valid IBAN.
func (s *WalletService) UpdateBank(ctx context.Context, wid string, in UpdateBankInput) (*domain.Wallet, error) {
	if in.ExternalAccount != nil && in.ExternalAccount.Account == "" && !s.valid.ValidIBAN(in.ExternalAccount.IBAN) {
		return nil, apperror.ErrInvalidIBAN()
	}
	w, err := s.locks.Mutate(ctx, s.query(wid), func(w *domain.Wallet) error {
		if in.Name != "" {
			w.Card.Name = slugify(in.Name)
		}
		if in.ExternalAccount == nil {
			return nil
		}
		acct := w.ExternalAccount
		if acct == nil {
			acct = &domain.ExternalAccount{}
			w.ExternalAccount = acct
		}
		ea := in.ExternalAccount
		if ea.IBAN != "" {
			acct.IBAN = ea.IBAN
		}
		if ea.BIC != "" {
			acct.BIC = ea.BIC
		}
		if ea.SIC != "" {
			acct.SIC = ea.SIC
		}
		if ea.Account != "" {
			acct.Account = ea.Account
		}
		if ea.Name != "" {
			acct.Name = slugify(ea.Name)
		}
		if ea.Address1 != "" {
			acct.Address1 = ea.Address1
		}
		if ea.Address2 != "" {
			acct.Address2 = ea.Address2
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w.Redacted(), nil
}

// UpdateExpiry replaces the card expiry with the given MM/YYYY value.
func (s *WalletService) UpdateExpiry(ctx context.Context, wid string, raw string) (*domain.Wallet, error) {
	expiry, ok := card.ParseExpiry(raw)
	if !ok {
		return nil, apperror.ErrInvalidExpiry(raw)
	}
	w, err := s.locks.Mutate(ctx, s.query(wid), func(w *domain.Wallet) error {
		w.Card.Expiry = expiry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w.Redacted(), nil
}

// SetAvailable toggles the wallet's availability flag.
func (s *WalletService) SetAvailable(ctx context.Context, wid string, available bool) (*domain.Wallet, error) {
	w, err := s.locks.Mutate(ctx, s.query(wid), func(w *domain.Wallet) error {
		w.Available = available
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w.Redacted(), nil
}

// SetTransfersEnabled toggles whether the wallet may move funds out.
func (s *WalletService) SetTransfersEnabled(ctx context.Context, wid string, enabled bool) (*domain.Wallet, error) {
	w, err := s.locks.Mutate(ctx, s.query(wid), func(w *domain.Wallet) error {
		w.TransfersEnabled = enabled
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w.Redacted(), nil
}

// Retrieve loads a wallet without taking its lock.
func (s *WalletService) Retrieve(ctx context.Context, wid string) (*domain.Wallet, error) {
	w, err := s.store.FindOne(ctx, ports.WalletQuery{Wid: wid})
	if err != nil {
		return nil, apperror.StoreError(err)
	}
	if w == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	if w.Apikey != s.cfg.Apikey {
		return nil, apperror.ErrForeignWallet()
	}
	return w.Redacted(), nil
}

// ListFilter narrows List results. Balance bounds are in major units.
type ListFilter struct {
	EmailContains string
	OwnerID       *int64
	BalanceGT     *float64
	BalanceLT     *float64
}

// List returns every non-gift wallet of this deployment matching the
// filter, redacted.
func (s *WalletService) List(ctx context.Context, f ListFilter) ([]*domain.Wallet, error) {
	filter := ports.WalletFilter{
		Apikey:        s.cfg.Apikey,
		Giftcode:      false,
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

func (s *WalletService) query(wid string) ports.WalletQuery {
	return ports.WalletQuery{Wid: wid, Apikey: s.cfg.Apikey}
}

// slugify lowercases a holder name and collapses whitespace to single
// dashes.
func slugify(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(fields, "-")
}
