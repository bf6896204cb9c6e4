package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/ident"
)

// TransactionService drives the charge state machine on a wallet:
// authorize, capture, refund and cancel.
type TransactionService struct {
	locks *LockManager
	store ports.WalletStore
	ids   ident.Generator
	cfg   config.LedgerConfig
	log   zerolog.Logger
}

func NewTransactionService(locks *LockManager, store ports.WalletStore, ids ident.Generator, cfg config.LedgerConfig, log zerolog.Logger) *TransactionService {
	return &TransactionService{locks: locks, store: store, ids: ids, cfg: cfg, log: log}
}

type AuthorizeInput struct {
	Amount      domain.Amount
	Description string

	// Captured settles the charge immediately instead of holding it.
	Captured bool
}

// Authorize places a hold on the wallet, or settles immediately when
// Captured is set. A hold counts against available balance until it is
// captured, cancelled or expires.
func (s *TransactionService) Authorize(ctx context.Context, wid string, in AuthorizeInput) (*domain.Transaction, error) {
	if in.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if in.Amount > domain.Amount(s.cfg.AllowMaxAmount) {
		return nil, apperror.ErrAmountCeiling(domain.Amount(s.cfg.AllowMaxAmount).Major(), s.cfg.Currency)
	}

	id := s.ids.TransactionID()
	var out domain.Transaction
	_, err := s.locks.Mutate(ctx, s.query(wid), func(w *domain.Wallet) error {
		now := time.Now()
		if w.Card.Expired(now) {
			return apperror.ErrCardExpired()
		}
		if w.Transaction(id) != nil {
			return apperror.ErrDuplicateEntryID()
		}

		available := *w.Balance + w.AmountNegative - w.ActiveHolds(now) - in.Amount
		if available < 0 {
			return apperror.ErrInsufficientFunds(w.Giftcode)
		}

		limited := now.Add(time.Duration(s.cfg.HoldDays) * 24 * time.Hour)
		trx := domain.Transaction{
			ID:          id,
			Amount:      in.Amount,
			Currency:    s.cfg.Currency,
			Description: in.Description,
			Created:     now,
			Limited:     &limited,
			Status:      domain.TransactionAuthorize,
		}
		if in.Captured {
			trx.Status = domain.TransactionCapture
			trx.Limited = nil
			*w.Balance -= in.Amount
		}
		trx.PrependLog(domain.LogLine(string(trx.Status), in.Amount, s.cfg.Currency, now))
		w.PrependTransaction(trx)
		out = trx
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("wid", wid).Str("transaction", id).Str("status", string(out.Status)).Msg("charge created")
	return &out, nil
}

// Capture settles an authorized hold, for the full held amount or a
// smaller one. A nil or zero amount captures the whole hold.
func (s *TransactionService) Capture(ctx context.Context, wid string, id string, amount *domain.Amount) (*domain.Transaction, error) {
	var out domain.Transaction
	_, err := s.locks.Mutate(ctx, s.query(wid), func(w *domain.Wallet) error {
		trx := w.Transaction(id)
		if trx == nil {
			return apperror.ErrTransactionNotFound()
		}
		now := time.Now()
		if trx.Limited != nil && trx.Limited.Before(now) {
			return apperror.ErrHoldExpired(trx.Limited.Format(domain.LogDateLayout))
		}
		if trx.Status != domain.TransactionAuthorize {
			return apperror.ErrInvalidTransition("capture", string(trx.Status))
		}

		amt := trx.Amount
		if amount != nil && *amount != 0 {
			if *amount < 0 {
				return apperror.ErrInvalidAmount()
			}
			if *amount > trx.Amount {
				return apperror.ErrCaptureExceedsHold()
			}
			amt = *amount
		}

		trx.Amount = amt
		trx.Status = domain.TransactionCapture
		trx.Limited = nil
		*w.Balance -= amt
		trx.PrependLog(domain.LogLine("capture", amt, trx.Currency, now))
		out = *trx
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("wid", wid).Str("transaction", id).Msg("charge captured")
	return &out, nil
}

// Refund returns captured funds to the wallet, fully or partially. A
// nil or zero amount refunds the full captured amount.
func (s *TransactionService) Refund(ctx context.Context, wid string, id string, amount *domain.Amount) (*domain.Transaction, error) {
	var out domain.Transaction
	_, err := s.locks.Mutate(ctx, s.query(wid), func(w *domain.Wallet) error {
		trx := w.Transaction(id)
		if trx == nil {
			return apperror.ErrTransactionNotFound()
		}
		if trx.Status != domain.TransactionCapture {
			return apperror.ErrInvalidTransition("refund", string(trx.Status))
		}

		amt := trx.Amount
		if amount != nil && *amount != 0 {
			if *amount < 0 {
				return apperror.ErrInvalidAmount()
			}
			if *amount > trx.Amount {
				return apperror.ErrRefundExceedsCapture()
			}
			amt = *amount
		}

		trx.AmountRefunded = amt
		trx.Status = domain.TransactionRefund
		*w.Balance += amt
		trx.PrependLog(domain.LogLine("refund", amt, trx.Currency, time.Now()))
		out = *trx
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("wid", wid).Str("transaction", id).Msg("charge refunded")
	return &out, nil
}

// Cancel voids an authorized hold. The balance was never debited, so
// only the hold disappears.
func (s *TransactionService) Cancel(ctx context.Context, wid string, id string) (*domain.Transaction, error) {
	var out domain.Transaction
	_, err := s.locks.Mutate(ctx, s.query(wid), func(w *domain.Wallet) error {
		trx := w.Transaction(id)
		if trx == nil {
			return apperror.ErrTransactionNotFound()
		}
		if trx.Status != domain.TransactionAuthorize {
			return apperror.ErrInvalidTransition("cancel", string(trx.Status))
		}
		trx.Status = domain.TransactionCancel
		trx.Limited = nil
		trx.PrependLog(domain.LogLine("cancel", trx.Amount, trx.Currency, time.Now()))
		out = *trx
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("wid", wid).Str("transaction", id).Msg("charge cancelled")
	return &out, nil
}

// Get loads a single transaction without taking the wallet lock.
func (s *TransactionService) Get(ctx context.Context, wid string, id string) (*domain.Transaction, error) {
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
	trx := w.Transaction(id)
	if trx == nil {
		return nil, apperror.ErrTransactionNotFound()
	}
	out := *trx
	return &out, nil
}

func (s *TransactionService) query(wid string) ports.WalletQuery {
	return ports.WalletQuery{Wid: wid, Apikey: s.cfg.Apikey}
}
