package controllers

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tawandakembo/PikichaPay/app/repository"
	"github.com/tawandakembo/PikichaPay/internal/pkg/cache"
	"github.com/tawandakembo/PikichaPay/internal/pkg/database"
	"github.com/tawandakembo/PikichaPay/internal/pkg/payments"
)

func userRepo() repository.UserRepository {
	return repository.GetGlobalFactory().GetUserRepository()
}

func orderRepo() repository.OrderRepository {
	return repository.GetGlobalFactory().GetOrderRepository()
}

func subscriptionRepo() repository.SubscriptionRepository {
	return repository.GetGlobalFactory().GetSubscriptionRepository()
}

func transactionRepo() repository.TransactionRepository {
	return repository.GetGlobalFactory().GetTransactionRepository()
}

const intentCacheTTL = 24 * time.Hour

var (
	notifierMu sync.RWMutex
	notifier   payments.Notifier
)

// SetNotifier installs the notification dispatcher built in main.
func SetNotifier(n payments.Notifier) {
	notifierMu.Lock()
	defer notifierMu.Unlock()
	notifier = n
}

func getNotifier() payments.Notifier {
	notifierMu.RLock()
	defer notifierMu.RUnlock()
	return notifier
}

func newReconciler() *payments.Reconciler {
	return payments.NewReconciler(payments.NewRepository(database.GetDB()), getNotifier())
}

// storedIntent is what we remember between initiating a payment and
// confirming it via poll, keyed by our minted reference.
type storedIntent struct {
	Purpose string `json:"purpose"`
	OrderID string `json:"order_id,omitempty"`
	PollURL string `json:"poll_url,omitempty"`
}

func intentCacheKey(reference string) string {
	return "payment:intent:" + reference
}

func storeIntent(reference string, intent payments.Intent, pollURL string) {
	raw, err := json.Marshal(storedIntent{
		Purpose: string(intent.Kind),
		OrderID: intent.OrderID,
		PollURL: pollURL,
	})
	if err != nil {
		return
	}
	// Best effort: the webhook path carries the intent in the result URL
	// and does not depend on this cache entry.
	_ = cache.Set(intentCacheKey(reference), string(raw), intentCacheTTL)
}

func loadIntent(reference string) (payments.Intent, bool) {
	raw, err := cache.Get(intentCacheKey(reference))
	if err != nil {
		return payments.Intent{}, false
	}
	var si storedIntent
	if err := json.Unmarshal([]byte(raw), &si); err != nil {
		return payments.Intent{}, false
	}
	switch payments.IntentKind(si.Purpose) {
	case payments.IntentSubscription:
		return payments.SubscriptionIntent(), true
	case payments.IntentOrder:
		return payments.OrderIntent(si.OrderID), true
	}
	return payments.Intent{}, false
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}
