package payments

import "strings"

const zimCountryCode = "263"

// NormalizeMsisdn canonicalizes a Zimbabwean mobile number to the
// country-coded form the gateways require (263XXXXXXXXX). Local numbers
// written as 0XXXXXXXXX get the country code substituted; already-coded
// numbers pass through.
func NormalizeMsisdn(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch r {
		case ' ', '-', '(', ')', '.':
			continue
		case '+':
			continue
		default:
			if r < '0' || r > '9' {
				return "", ErrInvalidPhone
			}
			b.WriteRune(r)
		}
	}

	s := b.String()
	switch {
	case len(s) == 10 && strings.HasPrefix(s, "0"):
		return zimCountryCode + s[1:], nil
	case len(s) == 12 && strings.HasPrefix(s, zimCountryCode):
		return s, nil
	default:
		return "", ErrInvalidPhone
	}
}
