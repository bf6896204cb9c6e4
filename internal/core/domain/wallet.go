package domain

import (
	"time"
)

// Wallet is the ledger aggregate: a balance, a virtual card, optional
// bank details and the full transaction/transfer history. Wallets are
// never deleted; deactivation is a flag.
type Wallet struct {
	Wid string `json:"wid"`

	// Apikey is the secret of the deployment this wallet belongs to.
	Apikey string `json:"-"`

	// OwnerID is the creator of the wallet. Nil for gift codes.
	OwnerID *int64 `json:"-"`

	Email       string `json:"email"`
	Description string `json:"description"`

	// Balance is nil on a wallet whose setup never completed; every
	// mutation path refuses to run against such a document.
	Balance *Amount `json:"balance"`

	// AmountNegative is the permitted overdraft in minor units.
	AmountNegative Amount `json:"amount_negative"`

	Card            Card             `json:"card"`
	ExternalAccount *ExternalAccount `json:"external_account,omitempty"`

	TransfersEnabled bool `json:"transfers_enabled"`
	Available        bool `json:"-"`
	Giftcode         bool `json:"-"`

	// IsLocked is the advisory lock counter. It is only ever moved by
	// the store's atomic increment/decrement, never by Save.
	IsLocked int64 `json:"-"`

	// Signature is the keyed hash protecting the signed field subset.
	Signature string `json:"-"`

	// Most-recent-first; records are prepended and never removed.
	Transactions []Transaction `json:"transactions"`
	Transfers    []Transfer    `json:"transfers"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// Card is the virtual card attached to a wallet. An absent RegisteredTo
// marks an unregistered gift-code wallet.
type Card struct {
	Number       string    `json:"number,omitempty"`
	Last4        string    `json:"last4"`
	Expiry       time.Time `json:"expiry"`
	Name         string    `json:"name,omitempty"`
	RegisteredTo *int64    `json:"registered_to,omitempty"`
}

// Expired reports whether the card can no longer authorize charges.
func (c Card) Expired(now time.Time) bool {
	return c.Expiry.IsZero() || c.Expiry.Before(now)
}

// ExternalAccount is the bank account used for bank transfers.
type ExternalAccount struct {
	IBAN     string `json:"iban,omitempty"`
	BIC      string `json:"bic,omitempty"`
	SIC      string `json:"sic,omitempty"`
	Account  string `json:"account,omitempty"`
	Name     string `json:"name,omitempty"`
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
}

// Transaction looks up a transaction by its ch_ id. The returned
// pointer aliases the wallet's history so engines can mutate in place.
func (w *Wallet) Transaction(id string) *Transaction {
	for i := range w.Transactions {
		if w.Transactions[i].ID == id {
			return &w.Transactions[i]
		}
	}
	return nil
}

// Transfer looks up a transfer by its tr_ id.
func (w *Wallet) Transfer(id string) *Transfer {
	for i := range w.Transfers {
		if w.Transfers[i].ID == id {
			return &w.Transfers[i]
		}
	}
	return nil
}

// PrependTransaction inserts a record at the head of the history.
func (w *Wallet) PrependTransaction(t Transaction) {
	w.Transactions = append([]Transaction{t}, w.Transactions...)
}

// PrependTransfer inserts a record at the head of the history.
func (w *Wallet) PrependTransfer(t Transfer) {
	w.Transfers = append([]Transfer{t}, w.Transfers...)
}

// ActiveHolds sums the authorized-but-not-captured amounts still
// reserved at the given instant: status authorize with an unexpired
// hold window.
func (w *Wallet) ActiveHolds(at time.Time) Amount {
	var held Amount
	for i := range w.Transactions {
		trx := &w.Transactions[i]
		if trx.Status == TransactionAuthorize && trx.Limited != nil && trx.Limited.After(at) {
			held += trx.Amount
		}
	}
	return held
}

// Clone returns a deep copy of the wallet. Stores hand out clones so an
// engine's in-memory mutations only become visible through Save.
func (w *Wallet) Clone() *Wallet {
	c := *w
	if w.OwnerID != nil {
		v := *w.OwnerID
		c.OwnerID = &v
	}
	if w.Balance != nil {
		v := *w.Balance
		c.Balance = &v
	}
	if w.Card.RegisteredTo != nil {
		v := *w.Card.RegisteredTo
		c.Card.RegisteredTo = &v
	}
	if w.ExternalAccount != nil {
		v := *w.ExternalAccount
		c.ExternalAccount = &v
	}
	if w.Transactions != nil {
		c.Transactions = make([]Transaction, len(w.Transactions))
		for i := range w.Transactions {
			c.Transactions[i] = w.Transactions[i].clone()
		}
	}
	if w.Transfers != nil {
		c.Transfers = make([]Transfer, len(w.Transfers))
		for i := range w.Transfers {
			c.Transfers[i] = w.Transfers[i].clone()
		}
	}
	return &c
}

// Redacted returns the caller-facing view of the wallet: internal-only
// fields cleared, the raw card number withheld once the card is bound
// to an owner, and history slices defaulted to empty.
func (w *Wallet) Redacted() *Wallet {
	r := w.Clone()
	r.Apikey = ""
	r.OwnerID = nil
	r.IsLocked = 0
	r.Signature = ""
	r.Giftcode = false
	r.Available = false
	if r.Card.RegisteredTo != nil {
		r.Card.Number = ""
		r.Card.RegisteredTo = nil
	}
	if r.Transactions == nil {
		r.Transactions = []Transaction{}
	}
	if r.Transfers == nil {
		r.Transfers = []Transfer{}
	}
	return r
}
