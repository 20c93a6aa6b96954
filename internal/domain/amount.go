package domain

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is an optional decimal decoded leniently from JSON. Numbers and
// numeric strings (with either decimal separator) are accepted; anything else
// decodes as unset instead of failing the request.
type Amount struct {
	decimal.NullDecimal
	// Present reports whether the key appeared in the payload at all.
	Present bool
}

func NewAmount(v string) Amount {
	return Amount{NullDecimal: ParseDecimal(v), Present: true}
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	a.Present = true
	a.NullDecimal = decimal.NullDecimal{}

	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		return nil
	}
	a.NullDecimal = ParseDecimal(strings.Trim(string(raw), `"`))
	return nil
}

// Null returns the value as a nullable decimal.
func (a Amount) Null() decimal.NullDecimal {
	return a.NullDecimal
}

// ParseDecimal parses user-entered numbers such as "5.50", "5,50" or
// "1.234,56". Unparsable input yields an invalid NullDecimal.
func ParseDecimal(raw string) decimal.NullDecimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.NullDecimal{}
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}
