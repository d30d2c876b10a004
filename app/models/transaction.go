package models

import "time"

const (
	TransactionTypeSubscription = "subscription"
	TransactionTypeOrder        = "order_payment"
)

const (
	TransactionStatusSuccess = "success"
	TransactionStatusFailed  = "failed"
	TransactionStatusPending = "pending"
)

// Transaction is the append-only settlement ledger. TransactionID holds
// the provider's transaction id and its unique index is the idempotency
// anchor for the whole payment pipeline: an insert that hits the index
// means the event was already applied. Rows are never updated or
// deleted.
type Transaction struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TransactionID  string    `gorm:"uniqueIndex;type:varchar(100);not null" json:"transaction_id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	Provider       string    `gorm:"type:varchar(20);not null" json:"provider"`
	Type           string    `gorm:"type:varchar(30);not null" json:"type"`
	Status         string    `gorm:"type:varchar(20);not null" json:"status"`
	AmountCents    int64     `gorm:"not null" json:"amount_cents"`
	Currency       string    `gorm:"type:varchar(3);not null" json:"currency"`
	SubscriptionID string    `gorm:"type:varchar(36);default:null;index" json:"subscription_id,omitempty"`
	OrderID        string    `gorm:"type:varchar(64);default:null;index" json:"order_id,omitempty"`
	Metadata       string    `gorm:"type:longtext" json:"metadata"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
