package domain

import "time"

// TransferType is the direction of a transfer relative to the wallet
// that records it.
type TransferType string

const (
	TransferDebit  TransferType = "debit"
	TransferCredit TransferType = "credit"
)

// Opposite returns the mirrored direction for a counterpart record.
func (t TransferType) Opposite() TransferType {
	if t == TransferDebit {
		return TransferCredit
	}
	return TransferDebit
}

// TransferRecipient distinguishes bank payouts from wallet-to-wallet
// moves.
type TransferRecipient string

const (
	RecipientBank   TransferRecipient = "bank"
	RecipientWallet TransferRecipient = "wallet"
)

// BankAccount is the snapshot of the external account a bank transfer
// was addressed to, frozen at creation time.
type BankAccount struct {
	IBAN    string `json:"iban,omitempty"`
	BIC     string `json:"bic,omitempty"`
	SIC     string `json:"sic,omitempty"`
	Account string `json:"account,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Transfer moves value between this wallet and a bank account or
// another wallet. Wallet-to-wallet transfers exist as two mirrored
// records sharing the same id, one per wallet, each typed from its own
// wallet's point of view and pointing at the counterpart wid.
type Transfer struct {
	ID             string            `json:"id"`
	Amount         Amount            `json:"amount"`
	AmountReversed Amount            `json:"amount_reversed"`
	Reversed       bool              `json:"reversed"`
	Bank           *BankAccount      `json:"bank,omitempty"`
	Refid          string            `json:"refid,omitempty"`
	Wallet         string            `json:"wallet,omitempty"` // counterpart wid
	Recipient      TransferRecipient `json:"recipient"`
	ApplicationFee *Amount           `json:"application_fee"`
	Currency       string            `json:"currency"`
	Description    string            `json:"description"`
	Created        time.Time         `json:"created"`
	Logs           []string          `json:"logs"`
	Type           TransferType      `json:"type"`
}

// PrependLog inserts a log line at the head of the entry's log list.
func (t *Transfer) PrependLog(line string) {
	t.Logs = append([]string{line}, t.Logs...)
}

// Remaining is the amount still reversible on this transfer.
func (t Transfer) Remaining() Amount {
	return t.Amount - t.AmountReversed
}

func (t Transfer) clone() Transfer {
	c := t
	if t.Bank != nil {
		v := *t.Bank
		c.Bank = &v
	}
	if t.ApplicationFee != nil {
		v := *t.ApplicationFee
		c.ApplicationFee = &v
	}
	if t.Logs != nil {
		c.Logs = append([]string(nil), t.Logs...)
	}
	return c
}
