package repository

import (
	"github.com/tawandakembo/PikichaPay/app/models"
	"gorm.io/gorm"
)

type gormTransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a ledger read repository backed by GORM.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &gormTransactionRepository{db: db}
}

func (r *gormTransactionRepository) GetByTransactionID(transactionID string) (*models.Transaction, error) {
	var t models.Transaction
	if err := r.db.Where("transaction_id = ?", transactionID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormTransactionRepository) ListByUserID(userID uint, limit int) ([]models.Transaction, error) {
	var ts []models.Transaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&ts).Error
	return ts, err
}
