package service

import (
	"context"
	"errors"
	"fmt"

	"billing/internal/ledger"
	"billing/internal/model"
	"billing/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EvaluatedInvoice is an invoice together with its ledger rows and the
// status derived from them.
type EvaluatedInvoice struct {
	Invoice  model.Invoice
	Core     ledger.Invoice
	Payments []model.Payment
	Status   ledger.PaymentStatus
	State    ledger.InvoiceState
}

// LedgerService is the I/O side of the ledger package: it fetches rows and
// hands them to the pure derivations.
type LedgerService interface {
	DeriveStatus(ctx context.Context, invoiceID uuid.UUID) (EvaluatedInvoice, error)
	Evaluate(ctx context.Context, invoices []model.Invoice) ([]EvaluatedInvoice, error)
	EvaluateCustomer(ctx context.Context, customerID uuid.UUID) ([]EvaluatedInvoice, error)
}

type ledgerService struct {
	invoiceRepo repository.InvoiceRepository
	paymentRepo repository.PaymentRepository
}

func NewLedgerService(invoiceRepo repository.InvoiceRepository, paymentRepo repository.PaymentRepository) LedgerService {
	return &ledgerService{invoiceRepo: invoiceRepo, paymentRepo: paymentRepo}
}

func (s *ledgerService) DeriveStatus(ctx context.Context, invoiceID uuid.UUID) (EvaluatedInvoice, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EvaluatedInvoice{}, ErrInvoiceNotFound
		}
		return EvaluatedInvoice{}, fmt.Errorf("failed to load invoice: %w", err)
	}

	payments, err := s.paymentRepo.ListByInvoice(ctx, invoice.ID)
	if err != nil {
		return EvaluatedInvoice{}, fmt.Errorf("failed to load payments: %w", err)
	}

	return evaluate(*invoice, payments), nil
}

func (s *ledgerService) Evaluate(ctx context.Context, invoices []model.Invoice) ([]EvaluatedInvoice, error) {
	ids := make([]uuid.UUID, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.ID)
	}

	rows, err := s.paymentRepo.ListByInvoiceIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	byInvoice := make(map[uuid.UUID][]model.Payment, len(invoices))
	for _, p := range rows {
		byInvoice[p.InvoiceID] = append(byInvoice[p.InvoiceID], p)
	}

	result := make([]EvaluatedInvoice, 0, len(invoices))
	for _, inv := range invoices {
		result = append(result, evaluate(inv, byInvoice[inv.ID]))
	}
	return result, nil
}

func (s *ledgerService) EvaluateCustomer(ctx context.Context, customerID uuid.UUID) ([]EvaluatedInvoice, error) {
	invoices, err := s.invoiceRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	return s.Evaluate(ctx, invoices)
}

func evaluate(inv model.Invoice, payments []model.Payment) EvaluatedInvoice {
	core := toLedgerInvoice(inv)
	status, state := ledger.Evaluate(core, toLedgerPayments(payments))
	return EvaluatedInvoice{
		Invoice:  inv,
		Core:     core,
		Payments: payments,
		Status:   status,
		State:    state,
	}
}

// toLedgerInvoice is the single place where the stored invoice shape,
// including its free-form metadata, is collapsed into the canonical record.
func toLedgerInvoice(inv model.Invoice) ledger.Invoice {
	return ledger.Invoice{
		ID:               inv.ID,
		InvoiceNumber:    inv.InvoiceNo,
		Date:             inv.InvoiceDate,
		Total:            ledger.ParseAmount(inv.TotalAmount),
		LegacyPaidAmount: ledger.LegacyPaidAmount([]byte(inv.Metadata)),
		Settled:          inv.Settled,
		SettlementReason: inv.SettlementReason,
	}
}

func toLedgerPayments(rows []model.Payment) []ledger.Payment {
	payments := make([]ledger.Payment, 0, len(rows))
	for _, p := range rows {
		payments = append(payments, ledger.Payment{
			ID:              p.ID,
			InvoiceID:       p.InvoiceID,
			Amount:          ledger.ParseAmount(p.Amount),
			Method:          p.Method,
			Date:            p.PaidAt,
			SourcePaymentID: p.SourcePaymentID,
		})
	}
	return payments
}
