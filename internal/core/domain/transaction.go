package domain

import "time"

// TransactionStatus is the lifecycle state of a charge.
// authorize -> capture -> refund, or authorize -> cancel.
type TransactionStatus string

const (
	TransactionAuthorize TransactionStatus = "authorize"
	TransactionCapture   TransactionStatus = "capture"
	TransactionCancel    TransactionStatus = "cancel"
	TransactionRefund    TransactionStatus = "refund"
)

// Transaction is a charge against a wallet's balance. While authorized
// it is a hold: the amount reduces available balance without touching
// the balance itself until capture.
type Transaction struct {
	ID             string            `json:"id"`
	Amount         Amount            `json:"amount"`
	AmountRefunded Amount            `json:"amount_refunded"`
	ApplicationFee *Amount           `json:"application_fee"`
	Dispute        *bool             `json:"dispute"`
	Currency       string            `json:"currency"`
	Description    string            `json:"description"`
	Created        time.Time         `json:"created"`
	Limited        *time.Time        `json:"limited,omitempty"` // hold expiry, cleared on capture
	Logs           []string          `json:"logs"`
	Status         TransactionStatus `json:"status"`
}

// PrependLog inserts a log line at the head of the entry's log list.
func (t *Transaction) PrependLog(line string) {
	t.Logs = append([]string{line}, t.Logs...)
}

func (t Transaction) clone() Transaction {
	c := t
	if t.ApplicationFee != nil {
		v := *t.ApplicationFee
		c.ApplicationFee = &v
	}
	if t.Dispute != nil {
		v := *t.Dispute
		c.Dispute = &v
	}
	if t.Limited != nil {
		v := *t.Limited
		c.Limited = &v
	}
	if t.Logs != nil {
		c.Logs = append([]string(nil), t.Logs...)
	}
	return c
}
