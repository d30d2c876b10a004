package payments

import (
	"errors"
	"testing"
)

func TestNormalizeMsisdn(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0771234567", want: "263771234567"},
		{in: "263771234567", want: "263771234567"},
		{in: "+263771234567", want: "263771234567"},
		{in: "077 123 4567", want: "263771234567"},
		{in: "077-123-4567", want: "263771234567"},
		{in: "(077) 123.4567", want: "263771234567"},
		{in: "771234567", wantErr: true},
		{in: "07712345678", wantErr: true},
		{in: "263771234", wantErr: true},
		{in: "077123456a", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizeMsisdn(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPhone) {
				t.Fatalf("NormalizeMsisdn(%q) error = %v, want ErrInvalidPhone", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NormalizeMsisdn(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("NormalizeMsisdn(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
