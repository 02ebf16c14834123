package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// CollectibleFrom turns an evaluated invoice into allocator input. The
// second return value is false for settled invoices and invoices with
// nothing left to collect.
func CollectibleFrom(inv Invoice, state InvoiceState) (Collectible, bool) {
	if state.IsSettled || !state.CollectibleDue.IsPositive() {
		return Collectible{}, false
	}
	return Collectible{
		InvoiceID:      inv.ID,
		InvoiceNumber:  inv.InvoiceNumber,
		Date:           inv.Date,
		CollectibleDue: state.CollectibleDue,
	}, true
}

// SortForFIFO returns a copy of invoices ordered oldest first. Invoices
// sharing a calendar date are ordered by invoice number whatever their time
// of day. The input is not modified.
func SortForFIFO(invoices []Collectible) []Collectible {
	sorted := make([]Collectible, len(invoices))
	copy(sorted, invoices)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if da, db := CalendarDate(a.Date), CalendarDate(b.Date); !da.Equal(db) {
			return da.Before(db)
		}
		return a.InvoiceNumber < b.InvoiceNumber
	})
	return sorted
}

// OutstandingFIFO evaluates every invoice against its ledger rows and
// returns the collectible ones in allocation order. payments is keyed by
// invoice ID.
func OutstandingFIFO(invoices []Invoice, payments map[uuid.UUID][]Payment) []Collectible {
	eligible := make([]Collectible, 0, len(invoices))
	for _, inv := range invoices {
		_, state := Evaluate(inv, payments[inv.ID])
		if c, ok := CollectibleFrom(inv, state); ok {
			eligible = append(eligible, c)
		}
	}
	return SortForFIFO(eligible)
}

// CalendarDate drops the time of day, keeping the date as written in t's
// own location.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
