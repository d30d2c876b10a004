package counter

import (
	"context"

	"github.com/tawandakembo/PikichaPay/internal/pkg/cache"
)

const (
	webhooksReceivedKey = "payments:counters:webhooks"
	paymentsAppliedKey  = "payments:counters:applied"
)

// AddWebhookReceived increments the received-webhook counter for a provider
func AddWebhookReceived(provider string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhooksReceivedKey, provider, 1).Err()
}

// AddPaymentApplied increments the applied-settlement counter for a provider
func AddPaymentApplied(provider string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, paymentsAppliedKey, provider, 1).Err()
}

// Snapshot returns the current counter values per provider.
func Snapshot() (map[string]map[string]string, error) {
	ctx := context.Background()
	rdb := cache.GetClient()

	webhooks, err := rdb.HGetAll(ctx, webhooksReceivedKey).Result()
	if err != nil {
		return nil, err
	}
	applied, err := rdb.HGetAll(ctx, paymentsAppliedKey).Result()
	if err != nil {
		return nil, err
	}
	return map[string]map[string]string{
		"webhooks_received": webhooks,
		"payments_applied":  applied,
	}, nil
}
