package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an AppError into one of the ledger's failure families.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindIntegrity    Kind = "integrity"
	KindBusinessRule Kind = "business_rule"
	KindInternal     Kind = "internal"
)

// AppError is a structured error carrying a stable code and a
// human-readable message. The wrapped internal error is never exposed
// to callers verbatim.
type AppError struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(kind Kind, code string, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, code string, message string, err error) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf reports the Kind of err, or KindInternal when err is not an
// AppError.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ---- Validation (VAL) ----

func ErrInvalidAmount() *AppError {
	return New(KindValidation, "VAL_001", "The amount is not valid")
}

func ErrAmountCeiling(maxMajor float64, currency string) *AppError {
	return New(KindValidation, "VAL_002",
		fmt.Sprintf("Transactions are limited to %.2f %s", maxMajor, currency))
}

func ErrInvalidIBAN() *AppError {
	return New(KindValidation, "VAL_003", "The IBAN reference is not valid")
}

func ErrInvalidExpiry(raw string) *AppError {
	return New(KindValidation, "VAL_004", fmt.Sprintf("The date is not valid: %s", raw))
}

func ErrInvalidBankAccount() *AppError {
	return New(KindValidation, "VAL_005", "The bank reference of the transfer is not valid")
}

func ErrSelfTransfer() *AppError {
	return New(KindValidation, "VAL_006", "You have to specify a recipient different than your wallet")
}

func ErrInvalidInput(err error) *AppError {
	return Wrap(KindValidation, "VAL_007", "The request is not valid", err)
}

func ErrGiftcodeRegistered() *AppError {
	return New(KindValidation, "VAL_008", "This card has already been registered")
}

// ---- Not found (NF) ----

func ErrWalletNotFound() *AppError {
	return New(KindNotFound, "NF_001", "The wallet does not exist")
}

func ErrTransactionNotFound() *AppError {
	return New(KindNotFound, "NF_002", "The transaction does not exist")
}

func ErrTransferNotFound() *AppError {
	return New(KindNotFound, "NF_003", "The transfer does not exist")
}

func ErrRecipientNotFound() *AppError {
	return New(KindNotFound, "NF_004", "The specified recipient does not exist")
}

// ---- Conflict (CON) ----

func ErrWalletBusy() *AppError {
	return New(KindConflict, "CON_001", "The wallet is already running another task")
}

func ErrDuplicateWallet() *AppError {
	return New(KindConflict, "CON_002", "A wallet already exists for this user")
}

// ErrDuplicateEntryID signals a generated identifier collision on the
// wallet history. It requires operator attention and is never retried.
func ErrDuplicateEntryID() *AppError {
	return New(KindConflict, "CON_003", "A severe error occurred in the payment service")
}

// ---- Integrity (INT) ----

func ErrForeignWallet() *AppError {
	return New(KindIntegrity, "INT_001", "This wallet does not belong to this instance")
}

func ErrTamperedWallet() *AppError {
	return New(KindIntegrity, "INT_002", "This wallet is inconsistent")
}

func ErrIncompleteWallet() *AppError {
	return New(KindIntegrity, "INT_003", "The payment service setup is incomplete")
}

// ---- Business rules (RULE) ----

func ErrInsufficientFunds(giftcode bool) *AppError {
	if giftcode {
		return New(KindBusinessRule, "RULE_001", "The amount on the card is insufficient")
	}
	return New(KindBusinessRule, "RULE_001", "The amount on the account is insufficient")
}

func ErrInvalidTransition(op string, status string) *AppError {
	return New(KindBusinessRule, "RULE_002",
		fmt.Sprintf("Cannot %s a transaction with status %s", op, status))
}

func ErrHoldExpired(limited string) *AppError {
	return New(KindBusinessRule, "RULE_003",
		fmt.Sprintf("The transaction is no longer valid since %s", limited))
}

func ErrCaptureExceedsHold() *AppError {
	return New(KindBusinessRule, "RULE_004", "The captured amount cannot exceed the reserved amount")
}

func ErrRefundExceedsCapture() *AppError {
	return New(KindBusinessRule, "RULE_005", "The refunded amount cannot exceed the captured amount")
}

func ErrReversalExceedsOriginal() *AppError {
	return New(KindBusinessRule, "RULE_006", "The reversed amount cannot exceed the original order")
}

func ErrCardExpired() *AppError {
	return New(KindBusinessRule, "RULE_007", "The payment service is no longer available")
}

// ---- System (SYS) ----

func InternalError(err error) *AppError {
	return Wrap(KindInternal, "SYS_001", "Internal error", err)
}

func StoreError(err error) *AppError {
	return Wrap(KindInternal, "SYS_002", "Storage error", err)
}
