// Package ledger derives invoice payment status and distributes customer
// payments over outstanding invoices. Everything here is pure: callers load
// rows, this package computes.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the presentation label of an invoice.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusPartial Status = "partial"
	StatusUnpaid  Status = "unpaid"
	StatusSettled Status = "settled"
)

// paidTolerance is the half currency unit band under the total that still
// counts as fully paid. It absorbs sub-unit rounding from discounts and tax.
var paidTolerance = decimal.New(5, -1)

// PaidTolerance returns the band under the total that still counts as paid.
func PaidTolerance() decimal.Decimal {
	return paidTolerance
}

// Invoice is the canonical view of an invoice the core works with.
type Invoice struct {
	ID               uuid.UUID
	InvoiceNumber    string
	Date             time.Time
	Total            decimal.Decimal
	LegacyPaidAmount decimal.Decimal
	Settled          bool
	SettlementReason string
}

// Payment is one itemized ledger row applied to one invoice.
type Payment struct {
	ID              uuid.UUID
	InvoiceID       uuid.UUID
	Amount          decimal.Decimal
	Method          string
	Date            time.Time
	SourcePaymentID *uuid.UUID
}

// PaymentStatus is the reconciled paid/remaining view of one invoice.
type PaymentStatus struct {
	Status    Status          `json:"status"`
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

// DeriveStatusFromData folds the legacy paid amount and the itemized ledger
// into a single status. Rows belonging to other invoices are ignored, as are
// non-positive row amounts.
func DeriveStatusFromData(inv Invoice, payments []Payment) PaymentStatus {
	total := inv.Total
	if total.IsNegative() {
		total = decimal.Zero
	}

	// the legacy amount is summed as stored; the clamp below bounds the result
	paid := inv.LegacyPaidAmount
	for _, p := range payments {
		if p.InvoiceID != uuid.Nil && inv.ID != uuid.Nil && p.InvoiceID != inv.ID {
			continue
		}
		if !p.Amount.IsPositive() {
			continue
		}
		paid = paid.Add(p.Amount)
	}

	paid = decimal.Max(decimal.Zero, decimal.Min(paid, total))
	remaining := decimal.Max(decimal.Zero, total.Sub(paid))

	return PaymentStatus{
		Status:    statusFor(total, paid),
		Paid:      paid,
		Remaining: remaining,
	}
}

func statusFor(total, paid decimal.Decimal) Status {
	switch {
	case total.IsZero():
		return StatusPaid
	case paid.GreaterThanOrEqual(total.Sub(paidTolerance)):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusUnpaid
	}
}
