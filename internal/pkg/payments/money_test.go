package payments

import (
	"errors"
	"testing"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in      string
		want    Currency
		wantErr bool
	}{
		{in: "USD", want: CurrencyUSD},
		{in: "usd", want: CurrencyUSD},
		{in: " zwg ", want: CurrencyZWG},
		{in: "ZWG", want: CurrencyZWG},
		{in: "EUR", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseCurrency(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseCurrency(%q) expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseCurrency(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseCurrency(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "9.99", want: 999},
		{in: "19.99", want: 1999},
		{in: "250", want: 25000},
		{in: "250.00", want: 25000},
		{in: "0.50", want: 50},
		{in: ".50", want: 50},
		{in: "10.5", want: 1050},
		{in: " 9.99 ", want: 999},
		{in: "-9.99", wantErr: true},
		{in: "9.999", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseAmount(tt.in, CurrencyUSD)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseAmount(%q) expected error, got %d", tt.in, got.Cents)
			}
			if !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("ParseAmount(%q) error = %v, want ErrInvalidPayload", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.in, err)
		}
		if got.Cents != tt.want {
			t.Fatalf("ParseAmount(%q) = %d cents, want %d", tt.in, got.Cents, tt.want)
		}
		if got.Currency != CurrencyUSD {
			t.Fatalf("ParseAmount(%q) currency = %q, want USD", tt.in, got.Currency)
		}
	}
}

func TestAmountString(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 999, want: "9.99"},
		{cents: 25000, want: "250.00"},
		{cents: 50, want: "0.50"},
		{cents: 1050, want: "10.50"},
	}

	for _, tt := range tests {
		a := NewAmount(tt.cents, CurrencyUSD)
		if got := a.String(); got != tt.want {
			t.Fatalf("Amount{%d}.String() = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestAmountStringRoundTrips(t *testing.T) {
	for _, cents := range []int64{1, 99, 100, 999, 1999, 25000, 50000} {
		a := NewAmount(cents, CurrencyZWG)
		back, err := ParseAmount(a.String(), CurrencyZWG)
		if err != nil {
			t.Fatalf("ParseAmount(%q) unexpected error: %v", a.String(), err)
		}
		if back.Cents != cents {
			t.Fatalf("round trip of %d cents via %q gave %d", cents, a.String(), back.Cents)
		}
	}
}
