package money

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "GHS"

// Parse coerces stored or submitted values into an amount. Anything that
// cannot be read as a number becomes zero.
func Parse(v any) decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return t
	case decimal.NullDecimal:
		if t.Valid {
			return t.Decimal
		}
		return decimal.Zero
	case string:
		d, ok := ParseString(t)
		if !ok {
			return decimal.Zero
		}
		return d
	case json.Number:
		return Parse(string(t))
	case float64:
		return decimal.NewFromFloat(t)
	case float32:
		return decimal.NewFromFloat32(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	default:
		return decimal.Zero
	}
}

// ParseString reads "1,234.50" style input. Empty input is a valid zero.
func ParseString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseOptional distinguishes "not supplied" from zero. Blank or unreadable
// input is reported as not valid.
func ParseOptional(s string) decimal.NullDecimal {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}
	}
	d, ok := ParseString(s)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Format renders an amount for human-readable messages, e.g. "₵1,234.50".
func Format(d decimal.Decimal, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	minor := d.Round(2).Shift(2).IntPart()
	return gomoney.New(minor, currency).Display()
}

// Amount decodes a JSON number, a numeric string, an empty string or null.
// Set reports whether a non-blank value was present.
type Amount struct {
	decimal.Decimal
	Set bool
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d, Set: true}
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = Amount{Decimal: decimal.Zero}
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		raw = s
	}

	if strings.TrimSpace(raw) == "" {
		*a = Amount{Decimal: decimal.Zero}
		return nil
	}
	d, ok := ParseString(raw)
	if !ok {
		*a = Amount{Decimal: decimal.Zero}
		return nil
	}
	*a = Amount{Decimal: d, Set: true}
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return a.Decimal.MarshalJSON()
}
