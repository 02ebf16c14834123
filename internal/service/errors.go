package service

import "errors"

var (
	ErrCustomerNotFound         = errors.New("customer not found")
	ErrInvoiceNotFound          = errors.New("invoice not found")
	ErrInvoiceSettled           = errors.New("invoice is settled")
	ErrSettlementReasonRequired = errors.New("settlement reason is required")
	ErrInvalidAmount            = errors.New("amount must be a positive number")
	ErrAmountExceedsDue         = errors.New("amount exceeds collectible due")
	ErrNothingToCollect         = errors.New("customer has no collectible invoices")
	ErrInvalidID                = errors.New("invalid id")
	ErrInvalidRequest           = errors.New("invalid request")
	ErrAllocationBusy           = errors.New("another payment for this customer is in progress")
)
