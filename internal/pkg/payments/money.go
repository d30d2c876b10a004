package payments

import (
	"fmt"
	"strconv"
	"strings"
)

// Currency is an ISO-style currency code. Only the two currencies the
// gateways settle in are accepted.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyZWG Currency = "ZWG"
)

// ParseCurrency normalizes and validates a currency code.
func ParseCurrency(s string) (Currency, error) {
	switch Currency(strings.ToUpper(strings.TrimSpace(s))) {
	case CurrencyUSD:
		return CurrencyUSD, nil
	case CurrencyZWG:
		return CurrencyZWG, nil
	default:
		return "", fmt.Errorf("%w: unknown currency %q", ErrInvalidPayload, s)
	}
}

// Amount is a monetary value in minor units. Providers post decimal
// strings; keeping cents avoids float drift in comparisons.
type Amount struct {
	Cents    int64
	Currency Currency
}

// NewAmount builds an Amount from minor units.
func NewAmount(cents int64, currency Currency) Amount {
	return Amount{Cents: cents, Currency: currency}
}

// ParseAmount parses a provider decimal string like "9.99" or "250".
// At most two fraction digits are accepted; negatives are rejected.
func ParseAmount(s string, currency Currency) (Amount, error) {
	raw := strings.TrimSpace(s)
	if raw == "" || strings.HasPrefix(raw, "-") {
		return Amount{}, fmt.Errorf("%w: bad amount %q", ErrInvalidPayload, s)
	}

	whole := raw
	frac := ""
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		whole, frac = raw[:i], raw[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		// Gateways send at most two decimals; more means a garbled field.
		return Amount{}, fmt.Errorf("%w: bad amount %q", ErrInvalidPayload, s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: bad amount %q", ErrInvalidPayload, s)
	}
	cents64, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: bad amount %q", ErrInvalidPayload, s)
	}
	return Amount{Cents: units*100 + cents64, Currency: currency}, nil
}

// String renders the amount as the decimal form the gateways expect.
func (a Amount) String() string {
	return fmt.Sprintf("%d.%02d", a.Cents/100, a.Cents%100)
}

// IsZero reports whether no value is set.
func (a Amount) IsZero() bool {
	return a.Cents == 0
}
