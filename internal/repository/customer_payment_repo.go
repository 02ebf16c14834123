package repository

import (
	"context"

	"billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CustomerPaymentRepository interface {
	Create(ctx context.Context, payment *model.CustomerPayment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CustomerPayment, error)
}

type customerPaymentRepository struct {
	db *gorm.DB
}

func NewCustomerPaymentRepository(db *gorm.DB) CustomerPaymentRepository {
	return &customerPaymentRepository{db: db}
}

func (r *customerPaymentRepository) Create(ctx context.Context, payment *model.CustomerPayment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *customerPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.CustomerPayment, error) {
	var payment model.CustomerPayment
	if err := GetDB(ctx, r.db).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}
