package ledger

import "github.com/shopspring/decimal"

// InvoiceState is the business level state of an invoice after manual
// settlement is taken into account.
type InvoiceState struct {
	Label          Status          `json:"label"`
	IsPaid         bool            `json:"is_paid"`
	IsPartial      bool            `json:"is_partial"`
	IsUnpaid       bool            `json:"is_unpaid"`
	IsSettled      bool            `json:"is_settled"`
	CollectibleDue decimal.Decimal `json:"collectible_due"`
}

// ResolveState applies the settlement override. A settled invoice has
// nothing left to collect whatever its ledger says.
func ResolveState(inv Invoice, st PaymentStatus) InvoiceState {
	if inv.Settled {
		return InvoiceState{
			Label:          StatusSettled,
			IsSettled:      true,
			CollectibleDue: decimal.Zero,
		}
	}
	return InvoiceState{
		Label:          st.Status,
		IsPaid:         st.Status == StatusPaid,
		IsPartial:      st.Status == StatusPartial,
		IsUnpaid:       st.Status == StatusUnpaid,
		CollectibleDue: st.Remaining,
	}
}

// Evaluate runs DeriveStatusFromData and ResolveState in one go.
func Evaluate(inv Invoice, payments []Payment) (PaymentStatus, InvoiceState) {
	st := DeriveStatusFromData(inv, payments)
	return st, ResolveState(inv, st)
}
