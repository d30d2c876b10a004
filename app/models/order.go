package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ProductPlushToy      = "plush_toy"
	ProductFramedPicture = "framed_picture"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

const (
	FulfillmentPending    = "pending"
	FulfillmentProcessing = "processing"
	FulfillmentShipped    = "shipped"
	FulfillmentDelivered  = "delivered"
	FulfillmentCancelled  = "cancelled"
)

// Order is a physical-product purchase. The payment dimension moves
// pending -> paid|failed exactly once; fulfillment advances
// independently under operator control.
type Order struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	OrderID           string    `gorm:"uniqueIndex;type:varchar(64);not null" json:"order_id" validate:"required,max=64"`
	UserID            uint      `gorm:"not null;index" json:"user_id"`
	UserEmail         string    `gorm:"type:varchar(200);not null" json:"user_email" validate:"required,email"`
	ProductType       string    `gorm:"type:varchar(30);not null" json:"product_type" validate:"oneof=plush_toy framed_picture"`
	ProductDetails    string    `gorm:"type:longtext" json:"product_details"`
	AmountCents       int64     `gorm:"not null" json:"amount_cents" validate:"gt=0"`
	Currency          string    `gorm:"type:varchar(3);not null" json:"currency" validate:"oneof=USD ZWG"`
	PaymentStatus     string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"payment_status"`
	PaymentMethod     string    `gorm:"type:varchar(30)" json:"payment_method"`
	PaymentReference  string    `gorm:"type:varchar(100);index" json:"payment_reference"`
	FulfillmentStatus string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"fulfillment_status"`
	ShippingAddress   string    `gorm:"type:text" json:"shipping_address"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o *Order) Validate() error {
	v := validator.New()

	return v.Struct(o)
}

// fulfillmentSuccessors is the forward-only transition table. Cancelled
// is reachable from every non-terminal state; delivered and cancelled
// are terminal.
var fulfillmentSuccessors = map[string][]string{
	FulfillmentPending:    {FulfillmentProcessing, FulfillmentCancelled},
	FulfillmentProcessing: {FulfillmentShipped, FulfillmentCancelled},
	FulfillmentShipped:    {FulfillmentDelivered, FulfillmentCancelled},
	FulfillmentDelivered:  {},
	FulfillmentCancelled:  {},
}

// CanTransitionFulfillment reports whether next is an allowed successor
// of the current fulfillment status.
func CanTransitionFulfillment(current, next string) bool {
	for _, allowed := range fulfillmentSuccessors[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidFulfillmentStatus reports whether s names a known fulfillment state.
func ValidFulfillmentStatus(s string) bool {
	_, ok := fulfillmentSuccessors[s]
	return ok
}
