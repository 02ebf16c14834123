package repository

import (
	"context"

	"billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentRepository is the append-only invoice ledger. There is no update or
// delete on purpose.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	CreateBatch(ctx context.Context, payments []model.Payment) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.Payment, error)
	ListByInvoiceIDs(ctx context.Context, invoiceIDs []uuid.UUID) ([]model.Payment, error)
	ListBySource(ctx context.Context, sourcePaymentID uuid.UUID) ([]model.Payment, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *paymentRepository) CreateBatch(ctx context.Context, payments []model.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&payments).Error
}

func (r *paymentRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	if err := GetDB(ctx, r.db).Where("invoice_id = ?", invoiceID).Order("paid_at asc").Order("created_at asc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *paymentRepository) ListByInvoiceIDs(ctx context.Context, invoiceIDs []uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	if len(invoiceIDs) == 0 {
		return payments, nil
	}
	if err := GetDB(ctx, r.db).Where("invoice_id IN ?", invoiceIDs).Order("paid_at asc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *paymentRepository) ListBySource(ctx context.Context, sourcePaymentID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	if err := GetDB(ctx, r.db).Where("source_payment_id = ?", sourcePaymentID).Order("created_at asc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
