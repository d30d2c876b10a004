package payments

import (
	"context"
	"errors"
	"time"

	"github.com/tawandakembo/PikichaPay/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the store operations the reconciliation engine and
// the expiry sweep need. Implementations must make InTransaction atomic:
// either every mutation inside fn commits or none do.
type Repository interface {
	InTransaction(ctx context.Context, fn func(tx Repository) error) error

	// CreateTransactionIfNotExists inserts a ledger row unless one with
	// the same transaction_id exists. Returns whether a row was created
	// plus the stored row either way. This is the idempotency anchor.
	CreateTransactionIfNotExists(t *models.Transaction) (bool, *models.Transaction, error)

	CreateSubscription(sub *models.Subscription) error
	ActivateUserSubscription(userID uint, sub *models.Subscription, credits int, unlimited bool) error
	GetUserByID(userID uint) (*models.User, error)

	GetOrderByOrderID(orderID string) (*models.Order, error)
	// MarkOrderPaid flips payment_status pending -> paid. False means the
	// order was not pending (stale or duplicate settlement).
	MarkOrderPaid(orderID, method, reference string) (bool, error)
	// MarkOrderPaymentFailed flips payment_status pending -> failed.
	MarkOrderPaymentFailed(orderID string) (bool, error)

	ListExpiredSubscriptions(now time.Time, limit int) ([]models.Subscription, error)
	// ExpireSubscription flips active -> expired only while renewal_date
	// is still in the past (compare-and-set against concurrent renewals).
	ExpireSubscription(id uint, now time.Time) (bool, error)
	// DowngradeLapsedUser resets a user to the free tier only if their
	// subscription pointer has actually lapsed.
	DowngradeLapsedUser(userID uint, now time.Time) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) InTransaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) CreateTransactionIfNotExists(t *models.Transaction) (bool, *models.Transaction, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoNothing: true,
	}).Create(t)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.Transaction
	if err := r.db.Where("transaction_id = ?", t.TransactionID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) ActivateUserSubscription(userID uint, sub *models.Subscription, credits int, unlimited bool) error {
	updates := map[string]interface{}{
		"credits_remaining": credits,
		"credits_total":     credits,
		"credits_tier":      sub.Tier,
		"credits_unlimited": unlimited,
		"sub_tier":          sub.Tier,
		"sub_status":        models.SubscriptionStatusActive,
		"sub_start_date":    sub.StartDate,
		"sub_end_date":      sub.RenewalDate,
	}
	res := r.db.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) GetUserByID(userID uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetOrderByOrderID(orderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("order_id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) MarkOrderPaid(orderID, method, reference string) (bool, error) {
	res := r.db.Model(&models.Order{}).
		Where("order_id = ? AND payment_status = ?", orderID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_status":    models.PaymentStatusPaid,
			"payment_method":    method,
			"payment_reference": reference,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) MarkOrderPaymentFailed(orderID string) (bool, error) {
	res := r.db.Model(&models.Order{}).
		Where("order_id = ? AND payment_status = ?", orderID, models.PaymentStatusPending).
		Update("payment_status", models.PaymentStatusFailed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) ListExpiredSubscriptions(now time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.
		Where("status = ? AND renewal_date < ?", models.SubscriptionStatusActive, now).
		Order("renewal_date ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) ExpireSubscription(id uint, now time.Time) (bool, error) {
	res := r.db.Model(&models.Subscription{}).
		Where("id = ? AND status = ? AND renewal_date < ?", id, models.SubscriptionStatusActive, now).
		Update("status", models.SubscriptionStatusExpired)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) DowngradeLapsedUser(userID uint, now time.Time) (bool, error) {
	res := r.db.Model(&models.User{}).
		Where("id = ? AND sub_status = ? AND sub_end_date < ?", userID, models.SubscriptionStatusActive, now).
		Updates(map[string]interface{}{
			"credits_remaining": models.FreeTierAllotment,
			"credits_total":     models.FreeTierAllotment,
			"credits_tier":      models.TierFree,
			"credits_unlimited": false,
			"sub_tier":          models.TierFree,
			"sub_status":        models.SubscriptionStatusExpired,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
