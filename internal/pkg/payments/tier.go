package payments

import (
	"fmt"

	"github.com/tawandakembo/PikichaPay/app/models"
)

// tierBands maps exact paid amounts (minor units) per currency to the
// subscription tier they purchase. The table is closed: anything not
// listed is rejected rather than defaulted.
var tierBands = map[Currency]map[int64]string{
	CurrencyUSD: {
		999:  models.TierStandard,
		1999: models.TierPremium,
	},
	CurrencyZWG: {
		25000: models.TierStandard,
		50000: models.TierPremium,
	},
}

// ClassifyTier resolves a paid amount to a subscription tier. Same input
// always yields the same tier; unknown amounts are an error so a mistyped
// price can never silently grant entitlements.
func ClassifyTier(amount Amount) (string, error) {
	bands, ok := tierBands[amount.Currency]
	if !ok {
		return "", fmt.Errorf("%w: currency %s", ErrUnknownAmount, amount.Currency)
	}
	tier, ok := bands[amount.Cents]
	if !ok {
		return "", fmt.Errorf("%w: %s %s", ErrUnknownAmount, amount.String(), amount.Currency)
	}
	return tier, nil
}

// UnlimitedCredits is the sentinel stored for tiers without a cap.
const UnlimitedCredits = -1

// MonthlyAllotment returns the per-cycle generation credits for a tier.
// Premium accounts are uncapped.
func MonthlyAllotment(tier string) (credits int, unlimited bool) {
	switch tier {
	case models.TierPremium:
		return UnlimitedCredits, true
	case models.TierStandard:
		return 30, false
	default:
		return models.FreeTierAllotment, false
	}
}
