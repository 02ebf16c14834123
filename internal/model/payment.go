package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment method tags. They are informational only.
const (
	MethodCash            = "cash"
	MethodCard            = "card"
	MethodUPI             = "upi"
	MethodOther           = "other"
	MethodCustomerPayment = "customer_payment"
	MethodRazorpay        = "razorpay"
)

// Payment is one append-only ledger row: money applied to exactly one invoice.
type Payment struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Invoice         *Invoice         `gorm:"foreignKey:InvoiceID" json:"-"`
	Amount          decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"amount"`
	Method          string           `gorm:"type:varchar(30);not null" json:"method"`
	PaidAt          time.Time        `gorm:"not null" json:"paid_at"`
	SourcePaymentID *uuid.UUID       `gorm:"type:uuid;index" json:"source_payment_id"` // FK to customer_payments.id when produced by allocation
	SourcePayment   *CustomerPayment `gorm:"foreignKey:SourcePaymentID" json:"-"`
	RecordedBy      *uuid.UUID       `gorm:"type:uuid" json:"recorded_by"`
	Note            string           `gorm:"type:text" json:"note"`
	CreatedAt       time.Time        `json:"created_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// CustomerPayment is a lump sum received from a customer that is spread over
// their open invoices. Its allocation rows point back here.
type CustomerPayment struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Method     string          `gorm:"type:varchar(30);not null" json:"method"`
	Reference  string          `gorm:"type:varchar(100)" json:"reference"`
	ReceivedAt time.Time       `gorm:"not null" json:"received_at"`
	RecordedBy *uuid.UUID      `gorm:"type:uuid" json:"recorded_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (p *CustomerPayment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
