package payments

import (
	"errors"
	"testing"

	"github.com/tawandakembo/PikichaPay/app/models"
)

func TestClassifyTier(t *testing.T) {
	tests := []struct {
		cents    int64
		currency Currency
		want     string
		wantErr  bool
	}{
		{cents: 999, currency: CurrencyUSD, want: models.TierStandard},
		{cents: 1999, currency: CurrencyUSD, want: models.TierPremium},
		{cents: 25000, currency: CurrencyZWG, want: models.TierStandard},
		{cents: 50000, currency: CurrencyZWG, want: models.TierPremium},
		{cents: 998, currency: CurrencyUSD, wantErr: true},
		{cents: 1000, currency: CurrencyUSD, wantErr: true},
		{cents: 999, currency: CurrencyZWG, wantErr: true},
		{cents: 0, currency: CurrencyUSD, wantErr: true},
	}

	for _, tt := range tests {
		got, err := ClassifyTier(NewAmount(tt.cents, tt.currency))
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ClassifyTier(%d %s) expected error, got %q", tt.cents, tt.currency, got)
			}
			if !errors.Is(err, ErrUnknownAmount) {
				t.Fatalf("ClassifyTier(%d %s) error = %v, want ErrUnknownAmount", tt.cents, tt.currency, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ClassifyTier(%d %s) unexpected error: %v", tt.cents, tt.currency, err)
		}
		if got != tt.want {
			t.Fatalf("ClassifyTier(%d %s) = %q, want %q", tt.cents, tt.currency, got, tt.want)
		}
	}
}

func TestClassifyTierIsDeterministic(t *testing.T) {
	amount := NewAmount(999, CurrencyUSD)
	first, err := ClassifyTier(amount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := ClassifyTier(amount)
		if err != nil || got != first {
			t.Fatalf("ClassifyTier not deterministic: got %q/%v, want %q", got, err, first)
		}
	}
}

func TestMonthlyAllotment(t *testing.T) {
	if credits, unlimited := MonthlyAllotment(models.TierPremium); credits != UnlimitedCredits || !unlimited {
		t.Fatalf("premium allotment = %d/%v, want %d/true", credits, unlimited, UnlimitedCredits)
	}
	if credits, unlimited := MonthlyAllotment(models.TierStandard); credits != 30 || unlimited {
		t.Fatalf("standard allotment = %d/%v, want 30/false", credits, unlimited)
	}
	if credits, unlimited := MonthlyAllotment(models.TierFree); credits != models.FreeTierAllotment || unlimited {
		t.Fatalf("free allotment = %d/%v, want %d/false", credits, unlimited, models.FreeTierAllotment)
	}
}
