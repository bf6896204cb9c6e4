// Package card implements the ledger's virtual card primitives: Luhn
// validation and check-digit generation, deterministic card-number
// derivation from a wallet identifier, and MM/YYYY expiry parsing.
package card

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"
)

// NumberLength is the length of a generated card number.
const NumberLength = 16

// Mod10Check validates a card number with the Luhn mod-10 algorithm.
func Mod10Check(number string) bool {
	if number == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Mod10Gen builds a NumberLength-digit card number from a numeric seed:
// the seed's digits (zero-padded or truncated to 15) plus the Luhn
// check digit.
func Mod10Gen(seed string) string {
	var b strings.Builder
	for _, r := range seed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	payload := b.String()
	if len(payload) > NumberLength-1 {
		payload = payload[:NumberLength-1]
	}
	for len(payload) < NumberLength-1 {
		payload = "0" + payload
	}
	return payload + strconv.Itoa(checkDigit(payload))
}

// NumberFromWID deterministically derives a card number from a wallet
// identifier. The same wid always yields the same number.
func NumberFromWID(wid string) string {
	h := fnv.New64a()
	h.Write([]byte(wid))
	return Mod10Gen(fmt.Sprintf("%015d", h.Sum64()%1_000_000_000_000_000))
}

// Last4 returns the trailing four digits of a card number.
func Last4(number string) string {
	if len(number) < 4 {
		return number
	}
	return number[len(number)-4:]
}

// checkDigit computes the Luhn check digit for a payload without one.
func checkDigit(payload string) int {
	sum := 0
	double := true
	for i := len(payload) - 1; i >= 0; i-- {
		d := int(payload[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// ParseExpiry parses an "MM/YYYY" expiry into the last instant a card
// is usable: the final day of that month at 23:59:00 local time.
func ParseExpiry(s string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return time.Time{}, false
	}
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 23, 59, 0, 0, time.Local), true
}

// DefaultExpiry returns the default card expiry: two years from now,
// at 23:59:00.
func DefaultExpiry(now time.Time) time.Time {
	e := now.AddDate(2, 0, 0)
	return time.Date(e.Year(), e.Month(), e.Day(), 23, 59, 0, 0, e.Location())
}
