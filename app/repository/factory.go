package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory bundles the repositories behind one constructed object so the
// store client is injected explicitly instead of living in package
// globals scattered across controllers.
type Factory struct {
	users         UserRepository
	orders        OrderRepository
	subscriptions SubscriptionRepository
	transactions  TransactionRepository
}

// NewFactory creates all repositories on one GORM handle.
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		users:         NewUserRepository(db),
		orders:        NewOrderRepository(db),
		subscriptions: NewSubscriptionRepository(db),
		transactions:  NewTransactionRepository(db),
	}
}

// NewFactoryWithRepositories assembles a factory from prebuilt
// repositories. Tests use it to install in-memory fakes behind the
// global accessor.
func NewFactoryWithRepositories(users UserRepository, orders OrderRepository, subscriptions SubscriptionRepository, transactions TransactionRepository) *Factory {
	return &Factory{
		users:         users,
		orders:        orders,
		subscriptions: subscriptions,
		transactions:  transactions,
	}
}

func (f *Factory) GetUserRepository() UserRepository                 { return f.users }
func (f *Factory) GetOrderRepository() OrderRepository               { return f.orders }
func (f *Factory) GetSubscriptionRepository() SubscriptionRepository { return f.subscriptions }
func (f *Factory) GetTransactionRepository() TransactionRepository   { return f.transactions }

var (
	globalFactory *Factory
	globalMu      sync.RWMutex
)

// SetGlobalFactory installs the factory built in main for handlers that
// are wired as plain functions (middleware).
func SetGlobalFactory(f *Factory) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalFactory = f
}

// GetGlobalFactory returns the installed factory.
func GetGlobalFactory() *Factory {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalFactory
}
