package repository

import (
	"github.com/tawandakembo/PikichaPay/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// EnsureByExternalID creates the local mirror row for an identity the
// auth collaborator vouched for, or returns the existing one. New users
// start on the free tier.
func (r *gormUserRepository) EnsureByExternalID(externalID, email string) (*models.User, error) {
	user := &models.User{
		ExternalID: externalID,
		Email:      email,
		Role:       models.ROLE_USER,
		Credits: models.Credits{
			Remaining: models.FreeTierAllotment,
			Total:     models.FreeTierAllotment,
			Tier:      models.TierFree,
		},
		Subscription: models.UserSubscription{
			Tier:   models.TierFree,
			Status: models.SubscriptionStatusExpired,
		},
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoNothing: true,
	}).Create(user).Error; err != nil {
		return nil, err
	}

	var stored models.User
	if err := r.db.Where("external_id = ?", externalID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormUserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormUserRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ConsumeCredit decrements one generation credit. Unlimited accounts
// pass without a write; the guard keeps remaining from going negative
// under concurrent generations.
func (r *gormUserRepository) ConsumeCredit(id uint) (bool, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return false, err
	}
	if user.Credits.Unlimited {
		return true, nil
	}

	res := r.db.Model(&models.User{}).
		Where("id = ? AND credits_remaining > 0", id).
		Update("credits_remaining", gorm.Expr("credits_remaining - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormUserRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}
