package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/ident"
)

const transferReplayTTL = 24 * time.Hour

// TransferService moves value out of and into wallets: payouts to a
// bank account and wallet-to-wallet transfers, with partial reversal.
type TransferService struct {
	locks *LockManager
	store ports.WalletStore
	cache ports.TransferCache // nil disables refid replay protection
	ids   ident.Generator
	valid *Validator
	cfg   config.LedgerConfig
	log   zerolog.Logger
}

func NewTransferService(locks *LockManager, store ports.WalletStore, cache ports.TransferCache, ids ident.Generator, valid *Validator, cfg config.LedgerConfig, log zerolog.Logger) *TransferService {
	return &TransferService{locks: locks, store: store, cache: cache, ids: ids, valid: valid, cfg: cfg, log: log}
}

type TransferInput struct {
	Amount      domain.Amount
	Type        domain.TransferType
	Description string

	// Refid deduplicates retried submissions for 24 hours.
	Refid string
}

type BankDestination struct {
	IBAN    string
	BIC     string
	SIC     string
	Account string
	Name    string
}

// TransferDestination names where the funds go. Exactly one of Wallet
// and Bank is used; with neither set, the wallet's own external
// account is the destination.
type TransferDestination struct {
	Wallet string
	Bank   *BankDestination
}

// Create records a transfer on the source wallet. Debits move funds
// out (to a bank account or another wallet), credits move funds in
// from a bank account. Wallet-to-wallet transfers write a mirrored
// record on the recipient under the same transfer id.
func (s *TransferService) Create(ctx context.Context, wid string, in TransferInput, dest TransferDestination) (t *domain.Transfer, err error) {
	if in.Type != domain.TransferDebit && in.Type != domain.TransferCredit {
		return nil, apperror.ErrInvalidInput(nil)
	}
	if in.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if in.Description == "" {
		in.Description = "wallet transfer"
	}

	if in.Refid != "" && s.cache != nil {
		if prev := s.replay(ctx, wid, in.Refid); prev != nil {
			return prev, nil
		}
	}

	srcQ := ports.WalletQuery{Wid: wid, Apikey: s.cfg.Apikey}
	src, err := s.locks.Acquire(ctx, srcQ)
	defer s.locks.ReleaseBracket(ctx, srcQ, err == nil)
	if err != nil {
		return nil, err
	}

	id := s.ids.TransferID()
	if src.Transfer(id) != nil {
		return nil, apperror.ErrDuplicateEntryID()
	}

	now := time.Now()
	record := domain.Transfer{
		ID:          id,
		Amount:      in.Amount,
		Refid:       in.Refid,
		Currency:    s.cfg.Currency,
		Description: in.Description,
		Created:     now,
		Type:        in.Type,
	}

	if dest.Wallet != "" {
		err = s.createWalletTransfer(ctx, src, &record, dest.Wallet, now)
	} else {
		err = s.createBankTransfer(ctx, src, &record, dest.Bank, now)
	}
	if err != nil {
		return nil, err
	}

	if in.Refid != "" && s.cache != nil {
		s.remember(ctx, wid, in.Refid, &record)
	}
	s.log.Info().Str("wid", wid).Str("transfer", id).Str("type", string(in.Type)).Msg("transfer created")
	out := record
	return &out, nil
}

func (s *TransferService) createBankTransfer(ctx context.Context, src *domain.Wallet, record *domain.Transfer, dest *BankDestination, now time.Time) error {
	bank := domain.BankAccount{}
	if dest != nil {
		bank = domain.BankAccount{IBAN: dest.IBAN, BIC: dest.BIC, SIC: dest.SIC, Account: dest.Account, Name: slugify(dest.Name)}
	} else if src.ExternalAccount != nil {
		acct := src.ExternalAccount
		bank = domain.BankAccount{IBAN: acct.IBAN, BIC: acct.BIC, SIC: acct.SIC, Account: acct.Account, Name: acct.Name}
	}
	if (bank.IBAN == "" && bank.Account == "") || bank.Name == "" {
		return apperror.ErrInvalidBankAccount()
	}
	if bank.Account == "" && !s.valid.ValidIBAN(bank.IBAN) {
		return apperror.ErrInvalidIBAN()
	}

	if record.Type == domain.TransferDebit {
		// Transfers settle against the balance alone. The overdraft
		// allowance and hold accounting only apply to charges.
		if *src.Balance < record.Amount {
			return apperror.ErrInsufficientFunds(src.Giftcode)
		}
		*src.Balance -= record.Amount
	} else {
		*src.Balance += record.Amount
	}

	record.Recipient = domain.RecipientBank
	record.Bank = &bank
	record.PrependLog(domain.LogLine(string(record.Type), record.Amount, record.Currency, now))
	src.PrependTransfer(*record)
	return s.locks.SignAndSave(ctx, src)
}

func (s *TransferService) createWalletTransfer(ctx context.Context, src *domain.Wallet, record *domain.Transfer, destWid string, now time.Time) (err error) {
	if destWid == src.Wid {
		return apperror.ErrSelfTransfer()
	}

	dstQ := ports.WalletQuery{Wid: destWid, Apikey: s.cfg.Apikey}
	dst, err := s.locks.Acquire(ctx, dstQ)
	defer s.locks.ReleaseBracket(ctx, dstQ, err == nil)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return apperror.ErrRecipientNotFound()
		}
		return err
	}

	if record.Type == domain.TransferDebit {
		if *src.Balance < record.Amount {
			return apperror.ErrInsufficientFunds(src.Giftcode)
		}
		*src.Balance -= record.Amount
		*dst.Balance += record.Amount
	} else {
		*src.Balance += record.Amount
		*dst.Balance -= record.Amount
	}

	record.Recipient = domain.RecipientWallet
	record.Wallet = dst.Wid
	record.PrependLog(domain.LogLine(string(record.Type), record.Amount, record.Currency, now))

	mirror := *record
	mirror.Type = record.Type.Opposite()
	mirror.Wallet = src.Wid
	mirror.Logs = []string{domain.LogLine(string(mirror.Type), mirror.Amount, mirror.Currency, now)}

	src.PrependTransfer(*record)
	dst.PrependTransfer(mirror)

	// Recipient first: a crash between the writes leaves the money
	// credited rather than burned.
	if err := s.locks.SignAndSave(ctx, dst); err != nil {
		return err
	}
	return s.locks.SignAndSave(ctx, src)
}

// Cancel reverses a transfer, fully by default or partially by amount.
// Wallet-to-wallet reversals update both mirrored records.
func (s *TransferService) Cancel(ctx context.Context, wid string, id string, amount *domain.Amount) (t *domain.Transfer, err error) {
	srcQ := ports.WalletQuery{Wid: wid, Apikey: s.cfg.Apikey}
	src, err := s.locks.Acquire(ctx, srcQ)
	defer s.locks.ReleaseBracket(ctx, srcQ, err == nil)
	if err != nil {
		return nil, err
	}

	record := src.Transfer(id)
	if record == nil {
		return nil, apperror.ErrTransferNotFound()
	}

	amt := record.Remaining()
	if amount != nil && *amount != 0 {
		if *amount < 0 {
			return nil, apperror.ErrInvalidAmount()
		}
		amt = *amount
	}
	if amt <= 0 || record.AmountReversed+amt > record.Amount {
		return nil, apperror.ErrReversalExceedsOriginal()
	}

	now := time.Now()
	if record.Recipient == domain.RecipientWallet {
		err = s.cancelWalletLeg(ctx, src, record, amt, now)
	} else {
		s.reverseLeg(src, record, amt, now)
		err = s.locks.SignAndSave(ctx, src)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("wid", wid).Str("transfer", id).Msg("transfer reversed")
	out := *record
	return &out, nil
}

func (s *TransferService) cancelWalletLeg(ctx context.Context, src *domain.Wallet, record *domain.Transfer, amt domain.Amount, now time.Time) (err error) {
	dstQ := ports.WalletQuery{Wid: record.Wallet, Apikey: s.cfg.Apikey}
	dst, err := s.locks.Acquire(ctx, dstQ)
	defer s.locks.ReleaseBracket(ctx, dstQ, err == nil)
	if err != nil {
		return err
	}

	counterpart := dst.Transfer(record.ID)
	if counterpart == nil {
		return apperror.ErrTransferNotFound()
	}

	s.reverseLeg(src, record, amt, now)
	s.reverseLeg(dst, counterpart, amt, now)

	if err := s.locks.SignAndSave(ctx, dst); err != nil {
		return err
	}
	return s.locks.SignAndSave(ctx, src)
}

// reverseLeg undoes amt of the transfer on its own wallet, per the
// record's own direction.
func (s *TransferService) reverseLeg(w *domain.Wallet, t *domain.Transfer, amt domain.Amount, now time.Time) {
	if t.Type == domain.TransferDebit {
		*w.Balance += amt
	} else {
		*w.Balance -= amt
	}
	t.AmountReversed += amt
	t.Reversed = true
	t.PrependLog(domain.LogLine("Reversed "+string(t.Type), amt, t.Currency, now))
}

// Get loads a single transfer without taking the wallet lock.
func (s *TransferService) Get(ctx context.Context, wid string, id string) (*domain.Transfer, error) {
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
	t := w.Transfer(id)
	if t == nil {
		return nil, apperror.ErrTransferNotFound()
	}
	out := *t
	return &out, nil
}

func (s *TransferService) replayKey(wid, refid string) string {
	sum := sha256.Sum256([]byte(s.cfg.Apikey + ":" + wid + ":" + refid))
	return hex.EncodeToString(sum[:])
}

// replay returns the previously recorded transfer for this refid, or
// nil. Cache failures degrade to a fresh transfer.
func (s *TransferService) replay(ctx context.Context, wid, refid string) *domain.Transfer {
	raw, err := s.cache.Get(ctx, s.replayKey(wid, refid))
	if err != nil {
		s.log.Warn().Err(err).Str("wid", wid).Msg("transfer replay lookup failed")
		return nil
	}
	if raw == nil {
		return nil
	}
	var t domain.Transfer
	if err := json.Unmarshal(raw, &t); err != nil {
		s.log.Warn().Err(err).Str("wid", wid).Msg("transfer replay decode failed")
		return nil
	}
	return &t
}

func (s *TransferService) remember(ctx context.Context, wid, refid string, t *domain.Transfer) {
	raw, err := json.Marshal(t)
	if err != nil {
		s.log.Warn().Err(err).Str("wid", wid).Msg("transfer replay encode failed")
		return
	}
	if err := s.cache.Set(ctx, s.replayKey(wid, refid), raw, transferReplayTTL); err != nil {
		s.log.Warn().Err(err).Str("wid", wid).Msg("transfer replay store failed")
	}
}
