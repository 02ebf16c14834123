package repository

import (
	"context"
	"strings"
	"time"

	"billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceListFilter narrows List results.
type InvoiceListFilter struct {
	CustomerID *uuid.UUID
	InvoiceNo  string // partial match
	Settled    *bool
	Page       int
	Limit      int
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByNumber(ctx context.Context, invoiceNo string) (*model.Invoice, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.Invoice, error)
	List(ctx context.Context, filter InvoiceListFilter) ([]model.Invoice, int64, error)
	CountByPrefix(ctx context.Context, prefix string) (int64, error)
	MarkSettled(ctx context.Context, id uuid.UUID, reason string, settledBy *uuid.UUID, at time.Time) (bool, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).Preload("Customer").First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByNumber(ctx context.Context, invoiceNo string) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).Preload("Customer").First(&invoice, "invoice_no = ?", invoiceNo).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListByCustomer returns every invoice of a customer, oldest first.
func (r *invoiceRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := GetDB(ctx, r.db).
		Where("customer_id = ?", customerID).
		Order("invoice_date asc").
		Order("invoice_no asc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceListFilter) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	db := GetDB(ctx, r.db)
	apply := func(q *gorm.DB) *gorm.DB {
		if filter.CustomerID != nil {
			q = q.Where("customer_id = ?", *filter.CustomerID)
		}
		if filter.InvoiceNo != "" {
			q = q.Where("LOWER(invoice_no) LIKE ?", "%"+strings.ToLower(filter.InvoiceNo)+"%")
		}
		if filter.Settled != nil {
			q = q.Where("settled = ?", *filter.Settled)
		}
		return q
	}

	if err := apply(db.Model(&model.Invoice{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := apply(db.Preload("Customer")).Order("invoice_date desc").Order("invoice_no desc").Offset(offset).Limit(filter.Limit).Find(&invoices).Error; err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

func (r *invoiceRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Invoice{}).Where("invoice_no LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// MarkSettled flips the settled flag. It never clears it; the bool is false
// when the invoice was already settled (or does not exist).
func (r *invoiceRepository) MarkSettled(ctx context.Context, id uuid.UUID, reason string, settledBy *uuid.UUID, at time.Time) (bool, error) {
	result := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("id = ? AND settled = ?", id, false).
		Updates(map[string]interface{}{
			"settled":           true,
			"settlement_reason": reason,
			"settled_by":        settledBy,
			"settled_at":        at,
			"updated_at":        at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
