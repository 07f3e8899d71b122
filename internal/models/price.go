package models

import (
	"fmt"
	"math"
	"strconv"
)

// Price is an amount in cents.
//
// The backend sends prices as JSON decimals ("precio": 1.49); Price keeps them as integers so totals add up exactly.
type Price int64

// ParsePrice converts a decimal string in major units to a [Price] ("1.49" -> 149).
func ParsePrice(s string) (Price, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return Price(math.Round(f * 100)), nil
}

// String formats the price with two decimals.
func (p Price) String() string {
	sign := ""
	v := int64(p)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON writes the price as a JSON decimal number.
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalJSON accepts a JSON number, a quoted decimal or null.
func (p *Price) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*p = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := ParsePrice(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}
