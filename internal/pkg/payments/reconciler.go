package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/tawandakembo/PikichaPay/app/models"
)

// PaymentNotice describes an applied settlement for the notification
// side channel.
type PaymentNotice struct {
	UserID         uint
	Email          string
	Kind           IntentKind
	Tier           string
	SubscriptionID string
	OrderID        string
	Amount         Amount
	Reference      string
	Provider       string
}

// Notifier receives best-effort notifications after a reconciliation
// commits. Implementations must never block the payment path or report
// failures back into it.
type Notifier interface {
	PaymentApplied(ctx context.Context, notice PaymentNotice)
}

// Reconciler turns normalized provider events into durable account
// state. All mutations for one event happen in a single store
// transaction keyed on the provider transaction id, so redelivery and
// concurrent duplicates collapse into one applied effect.
type Reconciler struct {
	repo     Repository
	notifier Notifier
	now      func() time.Time
}

func NewReconciler(repo Repository, notifier Notifier) *Reconciler {
	return &Reconciler{repo: repo, notifier: notifier, now: time.Now}
}

// Reconcile applies one payment event under the given intent.
//
// Only SUCCESS outcomes mutate anything: PENDING and FAILED are
// observations, and the provider owns retrying them. Reference errors
// are fatal for the request. A ledger insert that hits the unique
// transaction_id index short-circuits to AlreadyApplied.
func (r *Reconciler) Reconcile(ctx context.Context, event *PaymentEvent, intent Intent) (*ReconcileResult, error) {
	if event.Outcome != OutcomeSuccess {
		log.Printf("reconcile: ignoring %s event for reference %s (provider %s)",
			event.Outcome, event.Reference, event.Provider)
		return &ReconcileResult{Result: ResultNotActionable, Message: string(event.Outcome)}, nil
	}

	userID, currency, err := ParseReference(event.Reference)
	if err != nil {
		return nil, err
	}
	if event.Amount.Currency != currency {
		return nil, fmt.Errorf("%w: amount currency %s does not match reference currency %s",
			ErrInvalidPayload, event.Amount.Currency, currency)
	}

	res := &ReconcileResult{Result: ResultApplied, UserID: userID}
	var notice *PaymentNotice

	err = r.repo.InTransaction(ctx, func(tx Repository) error {
		ledger := &models.Transaction{
			TransactionID: event.ProviderTxID,
			UserID:        userID,
			Provider:      event.Provider,
			Status:        models.TransactionStatusSuccess,
			AmountCents:   event.Amount.Cents,
			Currency:      string(event.Amount.Currency),
			Metadata:      marshalMetadata(event.Metadata),
		}

		switch intent.Kind {
		case IntentSubscription:
			return r.applySubscription(tx, event, ledger, res, &notice)
		case IntentOrder:
			if intent.OrderID == "" {
				return fmt.Errorf("%w: order intent without order id", ErrInvalidPayload)
			}
			return r.applyOrder(tx, event, intent.OrderID, ledger, res, &notice)
		default:
			return fmt.Errorf("%w: unknown intent %q", ErrInvalidPayload, intent.Kind)
		}
	})
	if err != nil {
		return nil, err
	}

	// The side channel runs after commit and can never roll anything back.
	if res.Result == ResultApplied && notice != nil && r.notifier != nil {
		r.notifier.PaymentApplied(ctx, *notice)
	}
	return res, nil
}

func (r *Reconciler) applySubscription(tx Repository, event *PaymentEvent, ledger *models.Transaction, res *ReconcileResult, notice **PaymentNotice) error {
	tier, err := ClassifyTier(event.Amount)
	if err != nil {
		return err
	}
	credits, unlimited := MonthlyAllotment(tier)

	now := r.now()
	sub := &models.Subscription{
		SubscriptionID:       uuid.NewString(),
		UserID:               res.UserID,
		Tier:                 tier,
		Status:               models.SubscriptionStatusActive,
		AmountCents:          event.Amount.Cents,
		Currency:             string(event.Amount.Currency),
		PaymentMethod:        methodForEvent(event),
		TransactionReference: event.ProviderTxID,
		StartDate:            now,
		RenewalDate:          now.AddDate(0, 1, 0),
		Metadata:             marshalMetadata(event.Metadata),
	}

	ledger.Type = models.TransactionTypeSubscription
	ledger.SubscriptionID = sub.SubscriptionID

	created, stored, err := tx.CreateTransactionIfNotExists(ledger)
	if err != nil {
		return err
	}
	if !created && stored.Status == models.TransactionStatusSuccess {
		res.Result = ResultAlreadyApplied
		res.SubscriptionID = stored.SubscriptionID
		return nil
	}

	if err := tx.CreateSubscription(sub); err != nil {
		return err
	}
	if err := tx.ActivateUserSubscription(res.UserID, sub, credits, unlimited); err != nil {
		return err
	}

	res.Tier = tier
	res.SubscriptionID = sub.SubscriptionID

	user, err := tx.GetUserByID(res.UserID)
	if err != nil {
		return err
	}
	*notice = &PaymentNotice{
		UserID:         res.UserID,
		Email:          user.Email,
		Kind:           IntentSubscription,
		Tier:           tier,
		SubscriptionID: sub.SubscriptionID,
		Amount:         event.Amount,
		Reference:      event.Reference,
		Provider:       event.Provider,
	}
	return nil
}

func (r *Reconciler) applyOrder(tx Repository, event *PaymentEvent, orderID string, ledger *models.Transaction, res *ReconcileResult, notice **PaymentNotice) error {
	ledger.Type = models.TransactionTypeOrder
	ledger.OrderID = orderID

	created, stored, err := tx.CreateTransactionIfNotExists(ledger)
	if err != nil {
		return err
	}
	if !created && stored.Status == models.TransactionStatusSuccess {
		res.Result = ResultAlreadyApplied
		res.OrderID = stored.OrderID
		return nil
	}

	order, err := tx.GetOrderByOrderID(orderID)
	if err != nil {
		return err
	}
	if order.UserID != res.UserID {
		return ErrUnauthorizedReference
	}
	if event.Amount.Cents != order.AmountCents || string(event.Amount.Currency) != order.Currency {
		return fmt.Errorf("%w: transaction %s paid %d %s, order %s is priced %d %s",
			ErrAmountMismatch, event.ProviderTxID, event.Amount.Cents, event.Amount.Currency,
			orderID, order.AmountCents, order.Currency)
	}

	paid, err := tx.MarkOrderPaid(orderID, methodForEvent(event), event.Reference)
	if err != nil {
		return err
	}
	if !paid {
		// A different provider transaction already settled this order.
		res.Result = ResultAlreadyApplied
		res.OrderID = orderID
		return nil
	}

	res.OrderID = orderID
	*notice = &PaymentNotice{
		UserID:    res.UserID,
		Email:     order.UserEmail,
		Kind:      IntentOrder,
		OrderID:   orderID,
		Amount:    event.Amount,
		Reference: event.Reference,
		Provider:  event.Provider,
	}
	return nil
}

func methodForEvent(e *PaymentEvent) string {
	if e.Provider == ProviderEcocash {
		return MethodEcocash
	}
	if e.PayerPhone != "" {
		return MethodPaynowMobile
	}
	return MethodCard
}

func marshalMetadata(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(raw)
}
