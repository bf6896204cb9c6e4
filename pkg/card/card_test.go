package card

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMod10Check_KnownNumbers(t *testing.T) {
	// Standard Luhn test vectors.
	assert.True(t, Mod10Check("79927398713"))
	assert.True(t, Mod10Check("4242424242424242"))
	assert.False(t, Mod10Check("79927398710"))
	assert.False(t, Mod10Check("4242424242424241"))
}

func TestMod10Check_Rejects(t *testing.T) {
	assert.False(t, Mod10Check(""))
	assert.False(t, Mod10Check("4242-4242"))
	assert.False(t, Mod10Check("abcd"))
}

func TestMod10Gen_ProducesValidNumber(t *testing.T) {
	n := Mod10Gen("123456789012345")
	assert.Len(t, n, NumberLength)
	assert.True(t, Mod10Check(n))
}

func TestMod10Gen_PadsShortSeeds(t *testing.T) {
	n := Mod10Gen("42")
	assert.Len(t, n, NumberLength)
	assert.True(t, Mod10Check(n))
}

func TestMod10Gen_IgnoresNonDigits(t *testing.T) {
	assert.Equal(t, Mod10Gen("12a34b5"), Mod10Gen("12345"))
}

func TestNumberFromWID_Deterministic(t *testing.T) {
	a := NumberFromWID("wa_hP3xYz")
	b := NumberFromWID("wa_hP3xYz")
	c := NumberFromWID("wa_other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, NumberLength)
	assert.True(t, Mod10Check(a))
}

func TestLast4(t *testing.T) {
	assert.Equal(t, "4242", Last4("4242424242424242"))
	assert.Equal(t, "42", Last4("42"))
}

func TestParseExpiry_Valid(t *testing.T) {
	e, ok := ParseExpiry("02/2027")
	require.True(t, ok)

	assert.Equal(t, 2027, e.Year())
	assert.Equal(t, time.February, e.Month())
	assert.Equal(t, 28, e.Day(), "expiry should land on the last day of the month")
	assert.Equal(t, 23, e.Hour())
	assert.Equal(t, 59, e.Minute())
}

func TestParseExpiry_Invalid(t *testing.T) {
	for _, raw := range []string{"", "13/2027", "0/2027", "12-2027", "12/27", "junk"} {
		_, ok := ParseExpiry(raw)
		assert.False(t, ok, "expected %q to be rejected", raw)
	}
}

func TestDefaultExpiry(t *testing.T) {
	now := time.Date(2026, time.March, 10, 14, 5, 0, 0, time.Local)
	e := DefaultExpiry(now)

	assert.Equal(t, 2028, e.Year())
	assert.Equal(t, time.March, e.Month())
	assert.Equal(t, 10, e.Day())
	assert.Equal(t, 23, e.Hour())
	assert.Equal(t, 59, e.Minute())
	assert.Equal(t, 0, e.Second())
}
