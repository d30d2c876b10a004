package models

import "time"

// Subscription is one paid cycle activation. Renewals create a new row
// and repoint the user; existing rows are superseded, never rewritten,
// except for the terminal status flip done by the expiry sweep.
type Subscription struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID       string    `gorm:"uniqueIndex;type:varchar(36);not null" json:"subscription_id"`
	UserID               uint      `gorm:"not null;index" json:"user_id"`
	Tier                 string    `gorm:"type:varchar(20);not null" json:"tier"`
	Status               string    `gorm:"type:varchar(20);not null;default:'active';index:idx_subscriptions_status_renewal,priority:1" json:"status"`
	AmountCents          int64     `gorm:"not null" json:"amount_cents"`
	Currency             string    `gorm:"type:varchar(3);not null" json:"currency"`
	PaymentMethod        string    `gorm:"type:varchar(30);not null" json:"payment_method"`
	TransactionReference string    `gorm:"type:varchar(100);not null;index" json:"transaction_reference"`
	StartDate            time.Time `gorm:"type:timestamp;not null" json:"start_date"`
	RenewalDate          time.Time `gorm:"type:timestamp;not null;index:idx_subscriptions_status_renewal,priority:2" json:"renewal_date"`
	Metadata             string    `gorm:"type:longtext" json:"metadata"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether this cycle still grants entitlements at t.
func (s *Subscription) IsActive(t time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.RenewalDate.After(t)
}
