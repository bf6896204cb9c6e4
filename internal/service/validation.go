package service

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"wallet-ledger/pkg/apperror"
)

// Validator wraps the struct validator shared by the service layer.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("iban", validateIBAN)
	return &Validator{validate: v}
}

// Struct validates input structs against their binding tags.
func (v *Validator) Struct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		return apperror.ErrInvalidInput(err)
	}
	return nil
}

// ValidIBAN reports whether s is a structurally valid IBAN, checksum
// included.
func (v *Validator) ValidIBAN(s string) bool {
	return v.validate.Var(s, "iban") == nil
}

var ibanShapeRe = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{1,30}$`)

func validateIBAN(fl validator.FieldLevel) bool {
	return ibanValid(fl.Field().String())
}

// ibanValid runs the ISO 13616 checks: country code, check digits,
// length bounds and the mod-97 checksum over the rearranged string.
func ibanValid(raw string) bool {
	s := strings.ToUpper(strings.ReplaceAll(raw, " ", ""))
	if !ibanShapeRe.MatchString(s) {
		return false
	}
	// Move the leading country code and check digits to the end, then
	// reduce modulo 97 with letters expanded to two digits (A=10).
	rearranged := s[4:] + s[:4]
	rem := 0
	for _, r := range rearranged {
		if r >= '0' && r <= '9' {
			rem = (rem*10 + int(r-'0')) % 97
		} else {
			rem = (rem*100 + int(r-'A') + 10) % 97
		}
	}
	return rem == 1
}
