package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Collectible is an invoice that can still receive money.
type Collectible struct {
	InvoiceID      uuid.UUID
	InvoiceNumber  string
	Date           time.Time
	CollectibleDue decimal.Decimal
}

// Allocation is the share of a payment applied to one invoice.
type Allocation struct {
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
}

// Allocate walks the invoices in the order given and retires each one in
// full before moving to the next, until the payment runs out. Ordering and
// filtering are the caller's job (see SortForFIFO and CollectibleFrom).
func Allocate(invoices []Collectible, paymentAmount decimal.Decimal) []Allocation {
	allocations := make([]Allocation, 0, len(invoices))
	remaining := paymentAmount

	for _, inv := range invoices {
		if !remaining.IsPositive() {
			break
		}
		if !inv.CollectibleDue.IsPositive() {
			continue
		}

		allocated := decimal.Min(inv.CollectibleDue, remaining)
		allocations = append(allocations, Allocation{
			InvoiceID:       inv.InvoiceID,
			InvoiceNumber:   inv.InvoiceNumber,
			AllocatedAmount: allocated,
		})
		remaining = remaining.Sub(allocated)
	}

	return allocations
}

// AllocationSummary reports how much of a payment was applied. Unapplied
// money is only reported; no credit balance is created for it.
type AllocationSummary struct {
	Allocations    []Allocation    `json:"allocations"`
	PaymentAmount  decimal.Decimal `json:"payment_amount"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	Unapplied      decimal.Decimal `json:"unapplied"`
}

// Summarize totals an allocation result against the payment it came from.
func Summarize(allocations []Allocation, paymentAmount decimal.Decimal) AllocationSummary {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.AllocatedAmount)
	}
	unapplied := paymentAmount.Sub(total)
	if unapplied.IsNegative() {
		unapplied = decimal.Zero
	}
	return AllocationSummary{
		Allocations:    allocations,
		PaymentAmount:  paymentAmount,
		TotalAllocated: total,
		Unapplied:      unapplied,
	}
}
