package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in minor units (paisa). Prices, charges and totals are
// stored as DECIMAL(10,2) and scanned into Money so arithmetic never goes
// through floating point.
type Money int64

// ErrInvalidAmount is returned by ParseMoney for text that is not a
// non-negative decimal amount.
var ErrInvalidAmount = errors.New("invalid amount")

// MoneyFromFloat converts a major-unit float (as decoded from JSON request
// bodies) to Money, rounding to the nearest paisa.
func MoneyFromFloat(f float64) Money {
	return Money(math.Round(f * 100))
}

// ParseMoney parses amounts as the gateway and MySQL render them: "1000",
// "1000.0", "1000.00" and "1,000.0" all parse to 100000. Signs, exponents
// and any other non-digit text are rejected.
func ParseMoney(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	whole, frac, _ := strings.Cut(s, ".")
	if s == "" || s == "." || !digits(whole) || !digits(frac) {
		return 0, ErrInvalidAmount
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > math.MaxInt64/100-1 {
		return 0, ErrInvalidAmount
	}
	var f int64
	switch len(frac) {
	case 0:
	case 1:
		f = int64(frac[0]-'0') * 10
	default:
		// amounts beyond two decimals are rounded half up
		f = int64(frac[0]-'0')*10 + int64(frac[1]-'0')
		if len(frac) > 2 && frac[2] >= '5' {
			f++
		}
	}
	return Money(w*100 + f), nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Percent returns p percent of m, rounded half up to the paisa.
func (m Money) Percent(p int64) Money {
	return Money((int64(m)*p + 50) / 100)
}

// String renders the amount with two decimals, e.g. "250.00".
func (m Money) String() string {
	return fmt.Sprintf("%d.%02d", int64(m)/100, int64(m)%100)
}

// Float returns the amount in major units for JSON responses.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// Scan implements sql.Scanner for DECIMAL columns, which the MySQL driver
// returns as []byte.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = 0
		return nil
	case []byte:
		parsed, err := ParseMoney(string(v))
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case string:
		parsed, err := ParseMoney(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case int64:
		*m = Money(v * 100)
		return nil
	case float64:
		*m = MoneyFromFloat(v)
		return nil
	}
	return fmt.Errorf("money: unsupported scan type %T", src)
}

// Value implements driver.Valuer; DECIMAL columns take the two-decimal text.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// MarshalJSON renders Money as a JSON number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}
