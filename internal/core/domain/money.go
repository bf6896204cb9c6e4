package domain

import (
	"fmt"
	"math"
	"time"
)

// Amount is a monetary value in minor units (e.g. cents). All stored
// balances and history amounts are integral minor units, so rounding a
// balance to two major-unit decimals is always idempotent.
type Amount int64

// FromMajor converts a major-unit value into minor units, rounding to
// two decimal places of the major unit.
func FromMajor(v float64) Amount {
	return Amount(math.Round(v * 100))
}

// Major returns the amount expressed in major units.
func (a Amount) Major() float64 {
	return float64(a) / 100
}

// LogDateLayout renders the date part of history log lines.
const LogDateLayout = "Mon Jan 02 2006"

// LogLine renders a history log entry: "<verb> <amount/100> <currency> at <date>".
func LogLine(verb string, a Amount, currency string, at time.Time) string {
	return fmt.Sprintf("%s %.2f %s at %s", verb, a.Major(), currency, at.Format(LogDateLayout))
}
