package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// walletColumns is the full column list in scan order.
const walletColumns = `wid, apikey, owner_id, email, description, balance, amount_negative,
	card, external_account, transfers_enabled, available, giftcode,
	is_locked, signature, transactions, transfers, created, updated`

// WalletStore implements ports.WalletStore on PostgreSQL. The wallet
// is stored as one row per document; card, bank details and histories
// are JSONB.
type WalletStore struct {
	pool Pool
}

func NewWalletStore(pool Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

func (s *WalletStore) Insert(ctx context.Context, w *domain.Wallet) error {
	cardJSON, acctJSON, trxJSON, trfJSON, err := marshalDocument(w)
	if err != nil {
		return err
	}

	query := `INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = s.pool.Exec(ctx, query,
		w.Wid, w.Apikey, w.OwnerID, w.Email, w.Description, amountPtr(w.Balance), int64(w.AmountNegative),
		cardJSON, acctJSON, w.TransfersEnabled, w.Available, w.Giftcode,
		w.IsLocked, w.Signature, trxJSON, trfJSON, w.Created, w.Updated,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

func (s *WalletStore) FindOne(ctx context.Context, q ports.WalletQuery) (*domain.Wallet, error) {
	where, args := buildQueryWhere(q)
	query := `SELECT ` + walletColumns + ` FROM wallets` + where

	w, err := scanWallet(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find wallet: %w", err)
	}
	return w, nil
}

func (s *WalletStore) Find(ctx context.Context, f ports.WalletFilter) ([]*domain.Wallet, error) {
	clauses := []string{"giftcode = $1"}
	args := []any{f.Giftcode}
	if f.Apikey != "" {
		args = append(args, f.Apikey)
		clauses = append(clauses, fmt.Sprintf("apikey = $%d", len(args)))
	}
	if f.EmailContains != "" {
		args = append(args, "%"+f.EmailContains+"%")
		clauses = append(clauses, fmt.Sprintf("email ILIKE $%d", len(args)))
	}
	if f.OwnerID != nil {
		args = append(args, *f.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if f.BalanceGT != nil {
		args = append(args, int64(*f.BalanceGT))
		clauses = append(clauses, fmt.Sprintf("balance > $%d", len(args)))
	}
	if f.BalanceLT != nil {
		args = append(args, int64(*f.BalanceLT))
		clauses = append(clauses, fmt.Sprintf("balance < $%d", len(args)))
	}

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY created DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var out []*domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return out, nil
}

// IncrementLock moves the lock counter atomically and returns the
// post-update document, the database-side analog of an atomic
// increment-and-fetch.
func (s *WalletStore) IncrementLock(ctx context.Context, q ports.WalletQuery, delta int64) (*domain.Wallet, error) {
	where, args := buildQueryWhere(q)
	args = append(args, delta)
	query := fmt.Sprintf(`UPDATE wallets SET is_locked = is_locked + $%d`, len(args)) +
		where + ` RETURNING ` + walletColumns

	w, err := scanWallet(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("move wallet lock: %w", err)
	}
	return w, nil
}

// TryLock flips the counter 0 -> 1; a held lock and an absent wallet
// both come back nil, nil.
func (s *WalletStore) TryLock(ctx context.Context, q ports.WalletQuery) (*domain.Wallet, error) {
	where, args := buildQueryWhere(q)
	query := `UPDATE wallets SET is_locked = 1` + where + ` AND is_locked = 0 RETURNING ` + walletColumns

	w, err := scanWallet(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("try wallet lock: %w", err)
	}
	return w, nil
}

// Save writes every business field keyed by wid. The lock counter and
// creation timestamp are deliberately not in the SET list.
func (s *WalletStore) Save(ctx context.Context, w *domain.Wallet) error {
	cardJSON, acctJSON, trxJSON, trfJSON, err := marshalDocument(w)
	if err != nil {
		return err
	}

	query := `UPDATE wallets SET
		apikey = $2, owner_id = $3, email = $4, description = $5, balance = $6,
		amount_negative = $7, card = $8, external_account = $9,
		transfers_enabled = $10, available = $11, giftcode = $12,
		signature = $13, transactions = $14, transfers = $15, updated = $16
		WHERE wid = $1`

	tag, err := s.pool.Exec(ctx, query,
		w.Wid, w.Apikey, w.OwnerID, w.Email, w.Description, amountPtr(w.Balance),
		int64(w.AmountNegative), cardJSON, acctJSON,
		w.TransfersEnabled, w.Available, w.Giftcode,
		w.Signature, trxJSON, trfJSON, w.Updated,
	)
	if err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save wallet: %s not found", w.Wid)
	}
	return nil
}

// buildQueryWhere renders a WalletQuery as a WHERE clause starting at $1.
func buildQueryWhere(q ports.WalletQuery) (string, []any) {
	var clauses []string
	var args []any
	if q.Wid != "" {
		args = append(args, q.Wid)
		clauses = append(clauses, fmt.Sprintf("wid = $%d", len(args)))
	}
	if q.CardNumber != "" {
		args = append(args, q.CardNumber)
		clauses = append(clauses, fmt.Sprintf("card->>'number' = $%d", len(args)))
	}
	if q.OwnerID != nil {
		args = append(args, *q.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if q.Giftcode != nil {
		args = append(args, *q.Giftcode)
		clauses = append(clauses, fmt.Sprintf("giftcode = $%d", len(args)))
	}
	if q.Apikey != "" {
		args = append(args, q.Apikey)
		clauses = append(clauses, fmt.Sprintf("apikey = $%d", len(args)))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func marshalDocument(w *domain.Wallet) (card, acct, trx, trf []byte, err error) {
	if card, err = json.Marshal(w.Card); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal card: %w", err)
	}
	if w.ExternalAccount != nil {
		if acct, err = json.Marshal(w.ExternalAccount); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal external account: %w", err)
		}
	}
	if trx, err = json.Marshal(w.Transactions); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal transactions: %w", err)
	}
	if trf, err = json.Marshal(w.Transfers); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal transfers: %w", err)
	}
	return card, acct, trx, trf, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var (
		w        domain.Wallet
		balance  *int64
		cardJSON []byte
		acctJSON []byte
		trxJSON  []byte
		trfJSON  []byte
	)
	err := row.Scan(
		&w.Wid, &w.Apikey, &w.OwnerID, &w.Email, &w.Description, &balance, &w.AmountNegative,
		&cardJSON, &acctJSON, &w.TransfersEnabled, &w.Available, &w.Giftcode,
		&w.IsLocked, &w.Signature, &trxJSON, &trfJSON, &w.Created, &w.Updated,
	)
	if err != nil {
		return nil, err
	}
	if balance != nil {
		b := domain.Amount(*balance)
		w.Balance = &b
	}
	if err := json.Unmarshal(cardJSON, &w.Card); err != nil {
		return nil, fmt.Errorf("unmarshal card: %w", err)
	}
	if acctJSON != nil {
		w.ExternalAccount = &domain.ExternalAccount{}
		if err := json.Unmarshal(acctJSON, w.ExternalAccount); err != nil {
			return nil, fmt.Errorf("unmarshal external account: %w", err)
		}
	}
	if err := json.Unmarshal(trxJSON, &w.Transactions); err != nil {
		return nil, fmt.Errorf("unmarshal transactions: %w", err)
	}
	if err := json.Unmarshal(trfJSON, &w.Transfers); err != nil {
		return nil, fmt.Errorf("unmarshal transfers: %w", err)
	}
	return &w, nil
}

func amountPtr(a *domain.Amount) *int64 {
	if a == nil {
		return nil
	}
	v := int64(*a)
	return &v
}
