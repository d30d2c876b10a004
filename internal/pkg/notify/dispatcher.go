package notify

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
	"github.com/tawandakembo/PikichaPay/internal/pkg/payments"
)

// Dispatcher adapts the queue to the reconciler's Notifier contract.
// Enqueue failures are logged and swallowed so the financial mutation
// is never blocked or rolled back by the side channel.
type Dispatcher struct {
	queue *Queue
}

func NewDispatcher(queue *Queue) *Dispatcher {
	return &Dispatcher{queue: queue}
}

func (d *Dispatcher) PaymentApplied(ctx context.Context, notice payments.PaymentNotice) {
	if notice.Email == "" {
		return
	}

	payload := map[string]string{
		"amount":    notice.Amount.String(),
		"currency":  string(notice.Amount.Currency),
		"reference": notice.Reference,
		"provider":  notice.Provider,
	}

	jobType := JobTypePaymentReceipt
	switch notice.Kind {
	case payments.IntentSubscription:
		jobType = JobTypeSubscriptionActivated
		payload["tier"] = notice.Tier
		payload["subscription_id"] = notice.SubscriptionID
	case payments.IntentOrder:
		jobType = JobTypeOrderPaid
		payload["order_id"] = notice.OrderID
	}

	if err := d.queue.Enqueue(ctx, jobType, notice.Email, payload); err != nil {
		log.Errorf("[Notify] Failed to enqueue %s for user %d: %v", jobType, notice.UserID, err)
	}
}
