package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoice is a billing document issued to a customer. Money received against
// it lives in the payments ledger; the invoice row itself only changes when
// staff settle it.
type Invoice struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNo        string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_no"`
	CustomerID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer         *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	InvoiceDate      time.Time       `gorm:"not null;index" json:"invoice_date"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	Metadata         string          `gorm:"type:jsonb" json:"metadata,omitempty"` // historical free-form payload, may carry paidAmount
	Settled          bool            `gorm:"not null;default:false;index" json:"settled"`
	SettlementReason string          `gorm:"type:text" json:"settlement_reason"`
	SettledBy        *uuid.UUID      `gorm:"type:uuid" json:"settled_by"`
	SettledAt        *time.Time      `json:"settled_at"`
	Note             string          `gorm:"type:text" json:"note"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Metadata == "" {
		i.Metadata = "{}"
	}
	return nil
}
