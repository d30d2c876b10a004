package repository

import (
	"github.com/tawandakembo/PikichaPay/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	EnsureByExternalID(externalID, email string) (*models.User, error)
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	ConsumeCredit(id uint) (bool, error)
	Count() (int64, error)
}

// OrderRepository defines the interface for order-related database operations
type OrderRepository interface {
	Create(order *models.Order) error
	GetByOrderID(orderID string) (*models.Order, error)
	ListByUserID(userID uint, limit int) ([]models.Order, error)
	List(limit int) ([]models.Order, error)
	// SetFulfillment advances the fulfillment status through the
	// forward-only transition table.
	SetFulfillment(orderID, next string) (*models.Order, error)
	Count() (int64, error)
}

// SubscriptionRepository defines the interface for subscription records
type SubscriptionRepository interface {
	GetBySubscriptionID(subscriptionID string) (*models.Subscription, error)
	GetCurrentByUserID(userID uint) (*models.Subscription, error)
	ListByUserID(userID uint, limit int) ([]models.Subscription, error)
	// Cancel flips an active cycle to cancelled and downgrades the owner.
	Cancel(subscriptionID string, userID uint) error
}

// TransactionRepository exposes read access to the settlement ledger.
// The ledger is append-only; writes go through the payments engine only.
type TransactionRepository interface {
	GetByTransactionID(transactionID string) (*models.Transaction, error)
	ListByUserID(userID uint, limit int) ([]models.Transaction, error)
}
