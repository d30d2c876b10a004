package payments

import "errors"

var (
	// ErrMalformedReference means a payment reference could not be split
	// into its userId/currency segments.
	ErrMalformedReference = errors.New("malformed payment reference")
	// ErrUnauthorizedReference means the reference belongs to a different
	// user than the caller. Always fatal for the request.
	ErrUnauthorizedReference = errors.New("reference does not belong to caller")
	// ErrInvalidPayload means a provider callback did not match the
	// expected wire shape.
	ErrInvalidPayload = errors.New("invalid provider payload")
	// ErrInvalidSignature means a webhook failed its authenticity check.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrUnknownAmount means the paid amount matches no tier band.
	ErrUnknownAmount = errors.New("amount matches no subscription tier")
	// ErrInvalidPhone means a msisdn could not be normalized.
	ErrInvalidPhone = errors.New("invalid mobile number")
	// ErrOrderNotFound means the order referenced by a payment is unknown.
	ErrOrderNotFound = errors.New("order not found")
	// ErrAlreadyPaid means an order payment transition was attempted on a
	// non-pending order.
	ErrAlreadyPaid = errors.New("order is not pending payment")
	// ErrAmountMismatch means a settlement does not match the amount the
	// order was priced at. A cheaper verified payment must never close a
	// more expensive order.
	ErrAmountMismatch = errors.New("payment amount does not match order amount")
	// ErrInvalidTransition means a fulfillment change is not in the
	// allowed successor set.
	ErrInvalidTransition = errors.New("invalid fulfillment transition")
)
