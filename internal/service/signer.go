package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
)

// WalletSigner produces and verifies the keyed hash protecting a wallet
// document against tampering and cross-deployment reuse.
//
// The signed subset is fixed: balance, card, owner id, wid, email and
// apikey. The canonical form is the JSON encoding of an explicitly
// enumerated payload struct whose fields (and nested card fields) are
// declared in alphabetical tag order, so the byte stream is fully
// deterministic without any runtime reflection over the document.
type WalletSigner struct {
	secret string
}

// NewWalletSigner creates a signer keyed with the deployment secret.
func NewWalletSigner(secret string) *WalletSigner {
	return &WalletSigner{secret: secret}
}

// Field order here is the canonical order. Do not reorder.
type signaturePayload struct {
	Apikey  string         `json:"apikey"`
	Balance *domain.Amount `json:"balance"`
	Card    signatureCard  `json:"card"`
	Email   string         `json:"email"`
	ID      *int64         `json:"id"`
	Wid     string         `json:"wid"`
}

type signatureCard struct {
	Expiry       string `json:"expiry"`
	Last4        string `json:"last4"`
	Name         string `json:"name"`
	Number       string `json:"number"`
	RegisteredTo *int64 `json:"registered_to"`
}

// Sign computes the signature for the wallet's current state. The
// wallet is signed before redaction, card number included.
func (s *WalletSigner) Sign(w *domain.Wallet) (string, error) {
	canonical, err := s.canonical(w)
	if err != nil {
		return "", fmt.Errorf("canonicalize wallet %s: %w", w.Wid, err)
	}
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(canonical)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares it against the stored
// one. A false result is a fatal integrity failure for the caller.
func (s *WalletSigner) Verify(w *domain.Wallet) bool {
	expected, err := s.Sign(w)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(w.Signature))
}

func (s *WalletSigner) canonical(w *domain.Wallet) ([]byte, error) {
	var expiry string
	if !w.Card.Expiry.IsZero() {
		expiry = w.Card.Expiry.UTC().Format(time.RFC3339)
	}
	return json.Marshal(signaturePayload{
		Apikey:  w.Apikey,
		Balance: w.Balance,
		Card: signatureCard{
			Expiry:       expiry,
			Last4:        w.Card.Last4,
			Name:         w.Card.Name,
			Number:       w.Card.Number,
			RegisteredTo: w.Card.RegisteredTo,
		},
		Email: w.Email,
		ID:    w.OwnerID,
		Wid:   w.Wid,
	})
}
