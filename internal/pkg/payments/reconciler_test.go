package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tawandakembo/PikichaPay/app/models"
)

// fakeRepo is an in-memory Repository for engine tests. InTransaction
// runs fn directly; the ledger map stands in for the unique index.
type fakeRepo struct {
	transactions  map[string]*models.Transaction
	users         map[uint]*models.User
	orders        map[string]*models.Order
	subscriptions []*models.Subscription
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		transactions: make(map[string]*models.Transaction),
		users:        make(map[uint]*models.User),
		orders:       make(map[string]*models.Order),
	}
}

func (f *fakeRepo) InTransaction(ctx context.Context, fn func(tx Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) CreateTransactionIfNotExists(t *models.Transaction) (bool, *models.Transaction, error) {
	if existing, ok := f.transactions[t.TransactionID]; ok {
		return false, existing, nil
	}
	cp := *t
	f.transactions[t.TransactionID] = &cp
	return true, &cp, nil
}

func (f *fakeRepo) CreateSubscription(sub *models.Subscription) error {
	cp := *sub
	f.subscriptions = append(f.subscriptions, &cp)
	return nil
}

func (f *fakeRepo) ActivateUserSubscription(userID uint, sub *models.Subscription, credits int, unlimited bool) error {
	user, ok := f.users[userID]
	if !ok {
		return errors.New("user not found")
	}
	user.Credits.Remaining = credits
	user.Credits.Total = credits
	user.Credits.Tier = sub.Tier
	user.Credits.Unlimited = unlimited
	user.Subscription.Tier = sub.Tier
	user.Subscription.Status = models.SubscriptionStatusActive
	return nil
}

func (f *fakeRepo) GetUserByID(userID uint) (*models.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (f *fakeRepo) GetOrderByOrderID(orderID string) (*models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeRepo) MarkOrderPaid(orderID, method, reference string) (bool, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return false, ErrOrderNotFound
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	order.PaymentStatus = models.PaymentStatusPaid
	order.PaymentMethod = method
	order.PaymentReference = reference
	return true, nil
}

func (f *fakeRepo) MarkOrderPaymentFailed(orderID string) (bool, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return false, ErrOrderNotFound
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	order.PaymentStatus = models.PaymentStatusFailed
	return true, nil
}

func (f *fakeRepo) ListExpiredSubscriptions(now time.Time, limit int) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range f.subscriptions {
		if sub.Status == models.SubscriptionStatusActive && sub.RenewalDate.Before(now) {
			out = append(out, *sub)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) ExpireSubscription(id uint, now time.Time) (bool, error) {
	for _, sub := range f.subscriptions {
		if sub.ID == id && sub.Status == models.SubscriptionStatusActive && sub.RenewalDate.Before(now) {
			sub.Status = models.SubscriptionStatusExpired
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) DowngradeLapsedUser(userID uint, now time.Time) (bool, error) {
	user, ok := f.users[userID]
	if !ok {
		return false, nil
	}
	if user.Subscription.Status != models.SubscriptionStatusActive {
		return false, nil
	}
	if user.Subscription.EndDate == nil || !user.Subscription.EndDate.Before(now) {
		return false, nil
	}
	user.Credits.Remaining = models.FreeTierAllotment
	user.Credits.Total = models.FreeTierAllotment
	user.Credits.Tier = models.TierFree
	user.Credits.Unlimited = false
	user.Subscription.Tier = models.TierFree
	user.Subscription.Status = models.SubscriptionStatusExpired
	return true, nil
}

type fakeNotifier struct {
	notices []PaymentNotice
}

func (f *fakeNotifier) PaymentApplied(ctx context.Context, notice PaymentNotice) {
	f.notices = append(f.notices, notice)
}

func seedUser(repo *fakeRepo, id uint) *models.User {
	user := &models.User{
		ID:    id,
		Email: "user@example.com",
		Credits: models.Credits{
			Remaining: models.FreeTierAllotment,
			Total:     models.FreeTierAllotment,
			Tier:      models.TierFree,
		},
		Subscription: models.UserSubscription{
			Tier:   models.TierFree,
			Status: models.SubscriptionStatusExpired,
		},
	}
	repo.users[id] = user
	return user
}

func subscriptionEvent(txID string) *PaymentEvent {
	return &PaymentEvent{
		Provider:     ProviderEcocash,
		Reference:    "42_USD_1735689600000",
		ProviderTxID: txID,
		Amount:       NewAmount(999, CurrencyUSD),
		Outcome:      OutcomeSuccess,
		PayerPhone:   "263771234567",
	}
}

func TestReconcileSubscriptionApplies(t *testing.T) {
	repo := newFakeRepo()
	user := seedUser(repo, 42)
	notifier := &fakeNotifier{}
	r := NewReconciler(repo, notifier)

	res, err := r.Reconcile(context.Background(), subscriptionEvent("EC-1"), SubscriptionIntent())
	if err != nil {
		t.Fatalf("Reconcile unexpected error: %v", err)
	}
	if res.Result != ResultApplied {
		t.Fatalf("result = %q, want applied", res.Result)
	}
	if res.Tier != models.TierStandard {
		t.Fatalf("tier = %q, want standard", res.Tier)
	}
	if res.SubscriptionID == "" {
		t.Fatalf("expected a subscription id")
	}
	if len(repo.subscriptions) != 1 {
		t.Fatalf("expected 1 subscription row, got %d", len(repo.subscriptions))
	}
	if user.Credits.Remaining != 30 || user.Credits.Unlimited {
		t.Fatalf("credits = %d/%v, want 30/false", user.Credits.Remaining, user.Credits.Unlimited)
	}
	if user.Subscription.Status != models.SubscriptionStatusActive {
		t.Fatalf("user subscription status = %q", user.Subscription.Status)
	}
	if len(notifier.notices) != 1 || notifier.notices[0].Kind != IntentSubscription {
		t.Fatalf("expected one subscription notice, got %+v", notifier.notices)
	}

	ledger := repo.transactions["EC-1"]
	if ledger == nil {
		t.Fatalf("expected ledger row keyed by provider tx id")
	}
	if ledger.SubscriptionID != res.SubscriptionID {
		t.Fatalf("ledger subscription id = %q, want %q", ledger.SubscriptionID, res.SubscriptionID)
	}
}

func TestReconcileSubscriptionDuplicateIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	user := seedUser(repo, 42)
	notifier := &fakeNotifier{}
	r := NewReconciler(repo, notifier)

	first, err := r.Reconcile(context.Background(), subscriptionEvent("EC-1"), SubscriptionIntent())
	if err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	creditsAfterFirst := user.Credits.Remaining

	// Same provider transaction id delivered again.
	second, err := r.Reconcile(context.Background(), subscriptionEvent("EC-1"), SubscriptionIntent())
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if second.Result != ResultAlreadyApplied {
		t.Fatalf("duplicate result = %q, want already_applied", second.Result)
	}
	if second.SubscriptionID != first.SubscriptionID {
		t.Fatalf("duplicate reported subscription %q, want %q", second.SubscriptionID, first.SubscriptionID)
	}
	if len(repo.subscriptions) != 1 {
		t.Fatalf("duplicate created a second subscription row")
	}
	if user.Credits.Remaining != creditsAfterFirst {
		t.Fatalf("duplicate changed credits: %d -> %d", creditsAfterFirst, user.Credits.Remaining)
	}
	if len(notifier.notices) != 1 {
		t.Fatalf("duplicate sent another notification")
	}

	// A distinct transaction is a renewal and applies again.
	renewal, err := r.Reconcile(context.Background(), subscriptionEvent("EC-2"), SubscriptionIntent())
	if err != nil {
		t.Fatalf("renewal Reconcile: %v", err)
	}
	if renewal.Result != ResultApplied || len(repo.subscriptions) != 2 {
		t.Fatalf("renewal result = %q with %d rows", renewal.Result, len(repo.subscriptions))
	}
}

func TestReconcileNonSuccessIsNotActionable(t *testing.T) {
	repo := newFakeRepo()
	seedUser(repo, 42)
	r := NewReconciler(repo, &fakeNotifier{})

	for _, outcome := range []Outcome{OutcomePending, OutcomeFailed} {
		event := subscriptionEvent("EC-" + string(outcome))
		event.Outcome = outcome

		res, err := r.Reconcile(context.Background(), event, SubscriptionIntent())
		if err != nil {
			t.Fatalf("Reconcile(%s): %v", outcome, err)
		}
		if res.Result != ResultNotActionable {
			t.Fatalf("result for %s = %q, want not_actionable", outcome, res.Result)
		}
	}
	if len(repo.transactions) != 0 || len(repo.subscriptions) != 0 {
		t.Fatalf("non-success outcomes must not write anything")
	}
}

func TestReconcileRejectsCurrencyMismatch(t *testing.T) {
	repo := newFakeRepo()
	seedUser(repo, 42)
	r := NewReconciler(repo, &fakeNotifier{})

	event := subscriptionEvent("EC-1")
	event.Amount = NewAmount(25000, CurrencyZWG) // reference says USD

	if _, err := r.Reconcile(context.Background(), event, SubscriptionIntent()); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("currency mismatch error = %v, want ErrInvalidPayload", err)
	}
}

func TestReconcileRejectsMalformedReference(t *testing.T) {
	r := NewReconciler(newFakeRepo(), &fakeNotifier{})

	event := subscriptionEvent("EC-1")
	event.Reference = "garbage"

	if _, err := r.Reconcile(context.Background(), event, SubscriptionIntent()); !errors.Is(err, ErrMalformedReference) {
		t.Fatalf("error = %v, want ErrMalformedReference", err)
	}
}

func TestReconcileRejectsUnknownSubscriptionAmount(t *testing.T) {
	repo := newFakeRepo()
	seedUser(repo, 42)
	r := NewReconciler(repo, &fakeNotifier{})

	event := subscriptionEvent("EC-1")
	event.Amount = NewAmount(1234, CurrencyUSD)

	if _, err := r.Reconcile(context.Background(), event, SubscriptionIntent()); !errors.Is(err, ErrUnknownAmount) {
		t.Fatalf("error = %v, want ErrUnknownAmount", err)
	}
	if len(repo.subscriptions) != 0 {
		t.Fatalf("unknown amount must not create a subscription")
	}
}

func orderEvent(txID string) *PaymentEvent {
	return &PaymentEvent{
		Provider:     ProviderPaynow,
		Reference:    "42_USD_1735689600000",
		ProviderTxID: txID,
		Amount:       NewAmount(2500, CurrencyUSD),
		Outcome:      OutcomeSuccess,
	}
}

func seedOrder(repo *fakeRepo, orderID string, userID uint) *models.Order {
	order := &models.Order{
		OrderID:       orderID,
		UserID:        userID,
		UserEmail:     "user@example.com",
		ProductType:   models.ProductPlushToy,
		AmountCents:   2500,
		Currency:      "USD",
		PaymentStatus: models.PaymentStatusPending,
	}
	repo.orders[orderID] = order
	return order
}

func TestReconcileOrderApplies(t *testing.T) {
	repo := newFakeRepo()
	seedUser(repo, 42)
	order := seedOrder(repo, "ord-1", 42)
	notifier := &fakeNotifier{}
	r := NewReconciler(repo, notifier)

	res, err := r.Reconcile(context.Background(), orderEvent("PN-1"), OrderIntent("ord-1"))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Result != ResultApplied || res.OrderID != "ord-1" {
		t.Fatalf("result = %+v", res)
	}
	if order.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("order payment status = %q, want paid", order.PaymentStatus)
	}
	if order.PaymentMethod != MethodCard {
		t.Fatalf("payment method = %q, want card", order.PaymentMethod)
	}
	if len(notifier.notices) != 1 || notifier.notices[0].OrderID != "ord-1" {
		t.Fatalf("notices = %+v", notifier.notices)
	}
}

func TestReconcileOrderDuplicateIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	seedUser(repo, 42)
	seedOrder(repo, "ord-1", 42)
	notifier := &fakeNotifier{}
	r := NewReconciler(repo, notifier)

	if _, err := r.Reconcile(context.Background(), orderEvent("PN-1"), OrderIntent("ord-1")); err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}

	res, err := r.Reconcile(context.Background(), orderEvent("PN-1"), OrderIntent("ord-1"))
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if res.Result != ResultAlreadyApplied {
		t.Fatalf("duplicate result = %q", res.Result)
	}
	if len(notifier.notices) != 1 {
		t.Fatalf("duplicate sent another notification")
	}
}

func TestReconcileOrderSecondTransactionDoesNotRepay(t *testing.T) {
	repo := newFakeRepo()
	seedUser(repo, 42)
	order := seedOrder(repo, "ord-1", 42)
	r := NewReconciler(repo, &fakeNotifier{})

	if _, err := r.Reconcile(context.Background(), orderEvent("PN-1"), OrderIntent("ord-1")); err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}

	// A different provider transaction targeting the same order.
	res, err := r.Reconcile(context.Background(), orderEvent("PN-2"), OrderIntent("ord-1"))
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if res.Result != ResultAlreadyApplied {
		t.Fatalf("result = %q, want already_applied", res.Result)
	}
	if order.PaymentReference != "42_USD_1735689600000" || order.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("order mutated by second transaction: %+v", order)
	}
}

func TestReconcileOrderRejectsAmountMismatch(t *testing.T) {
	repo := newFakeRepo()
	seedUser(repo, 42)
	order := seedOrder(repo, "ord-big", 42)
	order.AmountCents = 10000 // 100.00 USD

	r := NewReconciler(repo, &fakeNotifier{})

	// A verified 9.99 payment (the standard subscription band) must not
	// settle a 100.00 order even though both belong to the same user.
	event := orderEvent("PN-1")
	event.Amount = NewAmount(999, CurrencyUSD)
	if _, err := r.Reconcile(context.Background(), event, OrderIntent("ord-big")); !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("underpaid order error = %v, want ErrAmountMismatch", err)
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("underpaid event settled the order: %+v", order)
	}

	// Same cents in the wrong currency is still a mismatch.
	zwg := orderEvent("PN-2")
	zwg.Reference = "42_ZWG_1735689600000"
	zwg.Amount = NewAmount(10000, CurrencyZWG)
	if _, err := r.Reconcile(context.Background(), zwg, OrderIntent("ord-big")); !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("wrong-currency error = %v, want ErrAmountMismatch", err)
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("wrong-currency event settled the order: %+v", order)
	}

	// The exact priced amount still goes through.
	exact := orderEvent("PN-3")
	exact.Amount = NewAmount(10000, CurrencyUSD)
	res, err := r.Reconcile(context.Background(), exact, OrderIntent("ord-big"))
	if err != nil {
		t.Fatalf("exact amount Reconcile: %v", err)
	}
	if res.Result != ResultApplied || order.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("exact amount result = %q, order = %+v", res.Result, order)
	}
}

func TestReconcileOrderRejectsForeignOwner(t *testing.T) {
	repo := newFakeRepo()
	seedUser(repo, 42)
	seedOrder(repo, "ord-1", 99) // belongs to someone else
	r := NewReconciler(repo, &fakeNotifier{})

	if _, err := r.Reconcile(context.Background(), orderEvent("PN-1"), OrderIntent("ord-1")); !errors.Is(err, ErrUnauthorizedReference) {
		t.Fatalf("error = %v, want ErrUnauthorizedReference", err)
	}
}

func TestReconcileOrderRejectsMissingOrder(t *testing.T) {
	repo := newFakeRepo()
	seedUser(repo, 42)
	r := NewReconciler(repo, &fakeNotifier{})

	if _, err := r.Reconcile(context.Background(), orderEvent("PN-1"), OrderIntent("ord-missing")); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("error = %v, want ErrOrderNotFound", err)
	}
	if _, err := r.Reconcile(context.Background(), orderEvent("PN-2"), Intent{Kind: IntentOrder}); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("empty order id error = %v, want ErrInvalidPayload", err)
	}
}

func TestMethodForEvent(t *testing.T) {
	ec := subscriptionEvent("EC-1")
	if got := methodForEvent(ec); got != MethodEcocash {
		t.Fatalf("ecocash event method = %q", got)
	}

	pnMobile := orderEvent("PN-1")
	pnMobile.PayerPhone = "263771234567"
	if got := methodForEvent(pnMobile); got != MethodPaynowMobile {
		t.Fatalf("paynow mobile event method = %q", got)
	}

	if got := methodForEvent(orderEvent("PN-2")); got != MethodCard {
		t.Fatalf("paynow card event method = %q", got)
	}
}
