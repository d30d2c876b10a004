package repository

import (
	"errors"
	"fmt"

	"github.com/tawandakembo/PikichaPay/app/models"
	"github.com/tawandakembo/PikichaPay/internal/pkg/payments"
	"gorm.io/gorm"
)

type gormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository backed by GORM.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &gormOrderRepository{db: db}
}

func (r *gormOrderRepository) Create(order *models.Order) error {
	// New orders always enter the state machine at pending/pending.
	order.PaymentStatus = models.PaymentStatusPending
	order.FulfillmentStatus = models.FulfillmentPending
	if err := order.Validate(); err != nil {
		return err
	}
	return r.db.Create(order).Error
}

func (r *gormOrderRepository) GetByOrderID(orderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("order_id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, payments.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormOrderRepository) ListByUserID(userID uint, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *gormOrderRepository) List(limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Order("created_at DESC").Limit(limit).Find(&orders).Error
	return orders, err
}

// SetFulfillment advances an order's fulfillment status. The update is
// conditional on the status we read, so two operators racing on the
// same order cannot skip a step.
func (r *gormOrderRepository) SetFulfillment(orderID, next string) (*models.Order, error) {
	if !models.ValidFulfillmentStatus(next) {
		return nil, fmt.Errorf("%w: unknown status %q", payments.ErrInvalidTransition, next)
	}

	order, err := r.GetByOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransitionFulfillment(order.FulfillmentStatus, next) {
		return nil, fmt.Errorf("%w: %s -> %s", payments.ErrInvalidTransition, order.FulfillmentStatus, next)
	}

	res := r.db.Model(&models.Order{}).
		Where("order_id = ? AND fulfillment_status = ?", orderID, order.FulfillmentStatus).
		Update("fulfillment_status", next)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: order changed concurrently", payments.ErrInvalidTransition)
	}

	order.FulfillmentStatus = next
	return order, nil
}

func (r *gormOrderRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Order{}).Count(&count).Error
	return count, err
}
