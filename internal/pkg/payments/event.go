package payments

// Provider names as stored on ledger rows.
const (
	ProviderPaynow  = "paynow"
	ProviderEcocash = "ecocash"
)

// Payment method names as exposed to clients and stored on orders.
const (
	MethodEcocash      = "ecocash"
	MethodPaynowMobile = "paynow_mobile"
	MethodCard         = "card"
)

// Outcome is the normalized settlement state of a provider callback.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
	OutcomePending Outcome = "PENDING"
)

// PaymentEvent is the provider-agnostic shape every adapter normalizes
// its wire format into. It is consumed by the reconciler and never
// persisted as-is.
type PaymentEvent struct {
	Provider     string
	Reference    string // our minted reference echoed back by the provider
	ProviderTxID string
	Amount       Amount
	Outcome      Outcome
	PayerPhone   string
	Metadata     map[string]string
}

// IntentKind distinguishes what a payment buys.
type IntentKind string

const (
	IntentSubscription IntentKind = "subscription"
	IntentOrder        IntentKind = "order"
)

// Intent is the explicit purpose tag passed alongside an event. The
// initiating endpoint knows what the reference was minted for, so the
// engine never infers purpose from payload shape.
type Intent struct {
	Kind    IntentKind
	OrderID string // set for IntentOrder
}

// SubscriptionIntent tags a subscription payment.
func SubscriptionIntent() Intent {
	return Intent{Kind: IntentSubscription}
}

// OrderIntent tags an order payment.
func OrderIntent(orderID string) Intent {
	return Intent{Kind: IntentOrder, OrderID: orderID}
}

// Result classifies what a reconciliation did.
type Result string

const (
	// ResultApplied means durable state was mutated for the first time.
	ResultApplied Result = "applied"
	// ResultAlreadyApplied means the event was seen before; nothing changed.
	ResultAlreadyApplied Result = "already_applied"
	// ResultNotActionable means a PENDING/FAILED observation; nothing changed.
	ResultNotActionable Result = "not_actionable"
)

// ReconcileResult reports the effect of one reconciliation.
type ReconcileResult struct {
	Result         Result
	UserID         uint
	Tier           string
	SubscriptionID string
	OrderID        string
	Message        string
}
