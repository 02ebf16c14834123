package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateCustomer          = "CREATE_CUSTOMER"
	ActionCreateInvoice           = "CREATE_INVOICE"
	ActionRecordPayment           = "RECORD_PAYMENT"
	ActionAllocateCustomerPayment = "ALLOCATE_CUSTOMER_PAYMENT"
	ActionSettleInvoice           = "SETTLE_INVOICE"
)

// AuditLog tracks Who, What, and When for ledger changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil when the change came from the CLI
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
