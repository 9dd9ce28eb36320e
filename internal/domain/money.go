package domain

import (
	"fmt"
	"strings"
)

// Cents is a fixed-point monetary amount with two fraction digits, stored as
// an integer number of cents. Integer addition keeps long sequences of small
// amounts exact, which float64 accumulation does not.
type Cents int64

// ParseCents parses a decimal string such as "59.99" into cents. Fraction
// digits beyond the second are rounded half-up. An empty string, a lone sign,
// or any non-digit character is rejected.
func ParseCents(s string) (Cents, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := false
	switch raw[0] {
	case '-':
		neg = true
		raw = raw[1:]
	case '+':
		raw = raw[1:]
	}

	intPart := raw
	fracPart := ""
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		intPart = raw[:i]
		fracPart = raw[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return 0, fmt.Errorf("malformed amount %q", s)
	}

	var cents int64
	for _, c := range intPart {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("malformed amount %q", s)
		}
		cents = cents*10 + int64(c-'0')
		if cents > 1<<53 {
			return 0, fmt.Errorf("amount %q out of range", s)
		}
	}
	cents *= 100

	for i, c := range fracPart {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("malformed amount %q", s)
		}
		switch i {
		case 0:
			cents += int64(c-'0') * 10
		case 1:
			cents += int64(c - '0')
		case 2:
			if c >= '5' {
				cents++
			}
		}
	}

	if neg {
		cents = -cents
	}
	return Cents(cents), nil
}

// String renders the amount as a plain decimal with two fraction digits.
func (c Cents) String() string {
	n := int64(c)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%s%d.%02d", sign, n/100, n%100)
}

// MarshalJSON emits the amount as a JSON number with two fraction digits.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (c *Cents) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseCents(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
