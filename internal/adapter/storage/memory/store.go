// Package memory provides an in-memory WalletStore used by tests and
// local development. It reproduces the persistence contract of the
// Postgres adapter, atomic lock-counter moves included.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
)

type WalletStore struct {
	mu      sync.Mutex
	wallets map[string]*domain.Wallet
}

func NewWalletStore() *WalletStore {
	return &WalletStore{wallets: make(map[string]*domain.Wallet)}
}

func (s *WalletStore) Insert(_ context.Context, w *domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[w.Wid]; ok {
		return fmt.Errorf("wallet %s already exists", w.Wid)
	}
	s.wallets[w.Wid] = w.Clone()
	return nil
}

func (s *WalletStore) FindOne(_ context.Context, q ports.WalletQuery) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w := s.findLocked(q); w != nil {
		return w.Clone(), nil
	}
	return nil, nil
}

func (s *WalletStore) Find(_ context.Context, f ports.WalletFilter) ([]*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Wallet
	for _, w := range s.wallets {
		if !matchFilter(w, f) {
			continue
		}
		out = append(out, w.Clone())
	}
	return out, nil
}

func (s *WalletStore) IncrementLock(_ context.Context, q ports.WalletQuery, delta int64) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.findLocked(q)
	if w == nil {
		return nil, nil
	}
	w.IsLocked += delta
	return w.Clone(), nil
}

func (s *WalletStore) TryLock(_ context.Context, q ports.WalletQuery) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.findLocked(q)
	if w == nil || w.IsLocked != 0 {
		return nil, nil
	}
	w.IsLocked = 1
	return w.Clone(), nil
}

func (s *WalletStore) Save(_ context.Context, w *domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.wallets[w.Wid]
	if !ok {
		return fmt.Errorf("wallet %s not found", w.Wid)
	}
	// The lock counter is owned by IncrementLock/TryLock.
	saved := w.Clone()
	saved.IsLocked = stored.IsLocked
	saved.Created = stored.Created
	s.wallets[w.Wid] = saved
	return nil
}

func (s *WalletStore) findLocked(q ports.WalletQuery) *domain.Wallet {
	for _, w := range s.wallets {
		if matchQuery(w, q) {
			return w
		}
	}
	return nil
}

func matchQuery(w *domain.Wallet, q ports.WalletQuery) bool {
	if q.Wid != "" && w.Wid != q.Wid {
		return false
	}
	if q.CardNumber != "" && w.Card.Number != q.CardNumber {
		return false
	}
	if q.OwnerID != nil && (w.OwnerID == nil || *w.OwnerID != *q.OwnerID) {
		return false
	}
	if q.Giftcode != nil && w.Giftcode != *q.Giftcode {
		return false
	}
	if q.Apikey != "" && w.Apikey != q.Apikey {
		return false
	}
	return true
}

func matchFilter(w *domain.Wallet, f ports.WalletFilter) bool {
	if f.Apikey != "" && w.Apikey != f.Apikey {
		return false
	}
	if w.Giftcode != f.Giftcode {
		return false
	}
	if f.EmailContains != "" && !strings.Contains(strings.ToLower(w.Email), strings.ToLower(f.EmailContains)) {
		return false
	}
	if f.OwnerID != nil && (w.OwnerID == nil || *w.OwnerID != *f.OwnerID) {
		return false
	}
	if f.BalanceGT != nil && (w.Balance == nil || *w.Balance <= *f.BalanceGT) {
		return false
	}
	if f.BalanceLT != nil && (w.Balance == nil || *w.Balance >= *f.BalanceLT) {
		return false
	}
	return true
}
