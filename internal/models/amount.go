package models

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Amount coerces a form or document value into a non-negative number.
// Empty, malformed, negative and non-finite input all become 0.
func Amount(v interface{}) float64 {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// AmountInput is a number as typed by the user. It unmarshals from JSON
// strings and JSON numbers alike; anything else is kept verbatim and later
// coerces to 0.
type AmountInput string

func (a *AmountInput) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*a = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = AmountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*a = AmountInput(n.String())
		return nil
	}
	*a = AmountInput(raw)
	return nil
}

// Value returns the coerced number.
func (a AmountInput) Value() float64 { return Amount(string(a)) }

// timestampLayout matches what the browser client writes (Date.toISOString).
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t the way addedAt is stored.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp decodes a stored timestamp. Firestore timestamps and ISO
// strings are both accepted; anything else yields the zero time.
func ParseTimestamp(v interface{}) time.Time {
	if v == nil {
		return time.Time{}
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
