package repository

import (
	"github.com/tawandakembo/PikichaPay/app/models"
	"gorm.io/gorm"
)

type gormSubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a subscription repository backed by GORM.
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &gormSubscriptionRepository{db: db}
}

func (r *gormSubscriptionRepository) GetBySubscriptionID(subscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("subscription_id = ?", subscriptionID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormSubscriptionRepository) GetCurrentByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		Order("renewal_date DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormSubscriptionRepository) ListByUserID(userID uint, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// Cancel terminates a cycle immediately: the row flips to cancelled and
// the owner drops to the free tier. Both writes run in one transaction
// and the row flip is conditional on the cycle still being active.
func (r *gormSubscriptionRepository) Cancel(subscriptionID string, userID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Subscription{}).
			Where("subscription_id = ? AND user_id = ? AND status = ?",
				subscriptionID, userID, models.SubscriptionStatusActive).
			Update("status", models.SubscriptionStatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"credits_remaining": models.FreeTierAllotment,
				"credits_total":     models.FreeTierAllotment,
				"credits_tier":      models.TierFree,
				"credits_unlimited": false,
				"sub_tier":          models.TierFree,
				"sub_status":        models.SubscriptionStatusCancelled,
			}).Error
	})
}
