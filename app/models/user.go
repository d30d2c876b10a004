package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"
)

const (
	TierFree     = "free"
	TierStandard = "standard"
	TierPremium  = "premium"
)

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusExpired   = "expired"
	SubscriptionStatusCancelled = "cancelled"
)

// FreeTierAllotment is the number of generation credits a free account
// gets per cycle.
const FreeTierAllotment = 3

// Credits tracks the generation allowance for a user. Remaining never
// exceeds Total unless Unlimited is set; only the reconciliation engine
// and the expiry sweep mutate these fields.
type Credits struct {
	Remaining int    `gorm:"not null;default:3" json:"remaining"`
	Total     int    `gorm:"not null;default:3" json:"total"`
	Tier      string `gorm:"type:varchar(20);not null;default:'free'" json:"tier" validate:"oneof=free standard premium"`
	Unlimited bool   `gorm:"default:false" json:"unlimited"`
}

// UserSubscription is the user's pointer to their current subscription
// cycle. The full history lives in the subscriptions table.
type UserSubscription struct {
	Tier      string     `gorm:"type:varchar(20);not null;default:'free'" json:"tier"`
	Status    string     `gorm:"type:varchar(20);not null;default:'expired'" json:"status"`
	StartDate *time.Time `gorm:"type:timestamp;default:null" json:"start_date,omitempty"`
	EndDate   *time.Time `gorm:"type:timestamp;default:null" json:"end_date,omitempty"`
}

// User mirrors an identity owned by the auth collaborator. Rows are
// created lazily on first authenticated request; credits and the
// subscription pointer are the only locally-owned state.
type User struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	ExternalID   string           `gorm:"uniqueIndex;type:varchar(64);not null" json:"external_id" validate:"required,max=64"`
	Email        string           `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Role         string           `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Credits      Credits          `gorm:"embedded;embeddedPrefix:credits_" json:"credits"`
	Subscription UserSubscription `gorm:"embedded;embeddedPrefix:sub_" json:"subscription"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// HasCredits reports whether the user can start another generation.
func (u *User) HasCredits() bool {
	return u.Credits.Unlimited || u.Credits.Remaining > 0
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}
