package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"billing/internal/ledger"
	"billing/internal/model"
	"billing/internal/repository"
	ws "billing/internal/websocket"
	"billing/pkg/pagination"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateInvoiceRequest struct {
	CustomerID  string          `json:"customer_id" binding:"required,uuid"`
	InvoiceNo   string          `json:"invoice_no" binding:"omitempty,max=30"` // generated when empty
	InvoiceDate string          `json:"invoice_date"`                          // YYYY-MM-DD or RFC3339, defaults to today
	TotalAmount string          `json:"total_amount" binding:"required"`
	Metadata    json.RawMessage `json:"metadata" swaggertype:"object"` // historical payload, kept verbatim
	Note        string          `json:"note"`
}

type SettleInvoiceRequest struct {
	Reason string `json:"reason" binding:"required,min=3,max=500"`
}

type InvoiceFilter struct {
	CustomerID string
	InvoiceNo  string
	Settled    *bool
	Page       int
	Limit      int
}

type InvoiceResponse struct {
	ID               string  `json:"id"`
	InvoiceNo        string  `json:"invoice_no"`
	CustomerID       string  `json:"customer_id"`
	CustomerName     string  `json:"customer_name"`
	InvoiceDate      string  `json:"invoice_date"`
	TotalAmount      string  `json:"total_amount"`
	PaidAmount       string  `json:"paid_amount"`
	Remaining        string  `json:"remaining"`
	PaymentStatus    string  `json:"payment_status"` // paid, partial, unpaid
	State            string  `json:"state"`          // payment_status, or settled
	CollectibleDue   string  `json:"collectible_due"`
	Settled          bool    `json:"settled"`
	SettlementReason string  `json:"settlement_reason,omitempty"`
	SettledBy        *string `json:"settled_by"`
	SettledAt        *string `json:"settled_at"`
	Note             string  `json:"note"`
	CreatedAt        string  `json:"created_at"`
}

type InvoiceDetailResponse struct {
	InvoiceResponse
	Payments []PaymentResponse `json:"payments"`
}

type InvoiceStatusResponse struct {
	InvoiceID string               `json:"invoice_id"`
	InvoiceNo string               `json:"invoice_no"`
	Status    ledger.PaymentStatus `json:"status"`
	State     ledger.InvoiceState  `json:"state"`
}

// --- Interface ---

type InvoiceService interface {
	CreateInvoice(ctx context.Context, staffID string, req CreateInvoiceRequest) (InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (InvoiceDetailResponse, error)
	GetInvoiceStatus(ctx context.Context, id string) (InvoiceStatusResponse, error)
	GetInvoiceStatusByNumber(ctx context.Context, invoiceNo string) (InvoiceStatusResponse, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error)
	SettleInvoice(ctx context.Context, id string, staffID string, req SettleInvoiceRequest) (InvoiceResponse, error)
}

type invoiceService struct {
	invoiceRepo  repository.InvoiceRepository
	customerRepo repository.CustomerRepository
	auditRepo    repository.AuditRepository
	ledger       LedgerService
	txManager    repository.TransactionManager
	events       EventPublisher
	now          func() time.Time
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	customerRepo repository.CustomerRepository,
	auditRepo repository.AuditRepository,
	ledgerService LedgerService,
	txManager repository.TransactionManager,
	events EventPublisher,
) InvoiceService {
	return &invoiceService{
		invoiceRepo:  invoiceRepo,
		customerRepo: customerRepo,
		auditRepo:    auditRepo,
		ledger:       ledgerService,
		txManager:    txManager,
		events:       events,
		now:          time.Now,
	}
}

// --- Implementation ---

func (s *invoiceService) CreateInvoice(ctx context.Context, staffID string, req CreateInvoiceRequest) (InvoiceResponse, error) {
	if err := validateRequest(req); err != nil {
		return InvoiceResponse{}, err
	}

	customerID, err := parseID(req.CustomerID)
	if err != nil {
		return InvoiceResponse{}, err
	}
	total, err := parseTotal(req.TotalAmount)
	if err != nil {
		return InvoiceResponse{}, err
	}
	invoiceDate, err := parseDate(req.InvoiceDate, s.now())
	if err != nil {
		return InvoiceResponse{}, err
	}
	// invoices are dated, not timestamped; same-day ordering falls to the number
	invoiceDate = ledger.CalendarDate(invoiceDate)

	metadata := "{}"
	if len(req.Metadata) > 0 {
		if !json.Valid(req.Metadata) {
			return InvoiceResponse{}, fmt.Errorf("%w: metadata must be valid JSON", ErrInvalidRequest)
		}
		metadata = string(req.Metadata)
	}

	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return InvoiceResponse{}, ErrCustomerNotFound
		}
		return InvoiceResponse{}, fmt.Errorf("failed to load customer: %w", err)
	}

	invoice := model.Invoice{
		InvoiceNo:   req.InvoiceNo,
		CustomerID:  customer.ID,
		InvoiceDate: invoiceDate,
		TotalAmount: total,
		Metadata:    metadata,
		Note:        req.Note,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if invoice.InvoiceNo == "" {
			invoiceNo, genErr := s.generateInvoiceNo(txCtx, invoiceDate)
			if genErr != nil {
				return fmt.Errorf("failed to generate invoice number: %w", genErr)
			}
			invoice.InvoiceNo = invoiceNo
		}

		if createErr := s.invoiceRepo.Create(txCtx, &invoice); createErr != nil {
			return fmt.Errorf("failed to create invoice: %w", createErr)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"customer_id":  customer.ID.String(),
			"total_amount": formatAmount(total),
			"invoice_date": invoiceDate.Format("2006-01-02"),
		})
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     actorID(staffID),
			Action:     model.ActionCreateInvoice,
			EntityID:   invoice.ID.String(),
			EntityName: invoice.InvoiceNo,
			Details:    string(details),
		})
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	invoice.Customer = customer
	return toInvoiceResponse(evaluate(invoice, nil)), nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (InvoiceDetailResponse, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return InvoiceDetailResponse{}, err
	}

	ev, err := s.ledger.DeriveStatus(ctx, invoiceID)
	if err != nil {
		return InvoiceDetailResponse{}, err
	}

	payments := make([]PaymentResponse, 0, len(ev.Payments))
	for _, p := range ev.Payments {
		payments = append(payments, toPaymentResponse(p))
	}
	return InvoiceDetailResponse{
		InvoiceResponse: toInvoiceResponse(ev),
		Payments:        payments,
	}, nil
}

func (s *invoiceService) GetInvoiceStatus(ctx context.Context, id string) (InvoiceStatusResponse, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return InvoiceStatusResponse{}, err
	}
	ev, err := s.ledger.DeriveStatus(ctx, invoiceID)
	if err != nil {
		return InvoiceStatusResponse{}, err
	}
	return toStatusResponse(ev), nil
}

func (s *invoiceService) GetInvoiceStatusByNumber(ctx context.Context, invoiceNo string) (InvoiceStatusResponse, error) {
	invoice, err := s.invoiceRepo.FindByNumber(ctx, invoiceNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return InvoiceStatusResponse{}, ErrInvoiceNotFound
		}
		return InvoiceStatusResponse{}, fmt.Errorf("failed to load invoice: %w", err)
	}
	ev, err := s.ledger.DeriveStatus(ctx, invoice.ID)
	if err != nil {
		return InvoiceStatusResponse{}, err
	}
	return toStatusResponse(ev), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error) {
	page := pagination.Normalize(filter.Page, filter.Limit)

	repoFilter := repository.InvoiceListFilter{
		InvoiceNo: filter.InvoiceNo,
		Settled:   filter.Settled,
		Page:      page.Page,
		Limit:     page.Limit,
	}
	if filter.CustomerID != "" {
		customerID, err := parseID(filter.CustomerID)
		if err != nil {
			return nil, 0, err
		}
		repoFilter.CustomerID = &customerID
	}

	invoices, total, err := s.invoiceRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	evaluated, err := s.ledger.Evaluate(ctx, invoices)
	if err != nil {
		return nil, 0, err
	}

	result := make([]InvoiceResponse, 0, len(evaluated))
	for _, ev := range evaluated {
		result = append(result, toInvoiceResponse(ev))
	}
	return result, total, nil
}

// SettleInvoice writes off whatever is left on an invoice. It is one-way:
// settling an already settled invoice fails with ErrInvoiceSettled.
func (s *invoiceService) SettleInvoice(ctx context.Context, id string, staffID string, req SettleInvoiceRequest) (InvoiceResponse, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	if err := validateRequest(req); err != nil {
		return InvoiceResponse{}, fmt.Errorf("%w: %v", ErrSettlementReasonRequired, err)
	}

	var before EvaluatedInvoice
	now := s.now()
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var evalErr error
		before, evalErr = s.ledger.DeriveStatus(txCtx, invoiceID)
		if evalErr != nil {
			return evalErr
		}
		if before.Invoice.Settled {
			return ErrInvoiceSettled
		}

		updated, settleErr := s.invoiceRepo.MarkSettled(txCtx, invoiceID, req.Reason, actorID(staffID), now)
		if settleErr != nil {
			return fmt.Errorf("failed to settle invoice: %w", settleErr)
		}
		if !updated {
			return ErrInvoiceSettled
		}

		details, _ := json.Marshal(map[string]interface{}{
			"reason":             req.Reason,
			"status_before":      before.Status.Status,
			"written_off_amount": formatAmount(before.State.CollectibleDue),
		})
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     actorID(staffID),
			Action:     model.ActionSettleInvoice,
			EntityID:   invoiceID.String(),
			EntityName: before.Invoice.InvoiceNo,
			Details:    string(details),
		})
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	after, err := s.ledger.DeriveStatus(ctx, invoiceID)
	if err != nil {
		return InvoiceResponse{}, err
	}

	publish(s.events, ws.EventInvoiceSettled, map[string]any{
		"invoice_id":  invoiceID.String(),
		"invoice_no":  after.Invoice.InvoiceNo,
		"customer_id": after.Invoice.CustomerID.String(),
	})

	return toInvoiceResponse(after), nil
}

func (s *invoiceService) generateInvoiceNo(ctx context.Context, date time.Time) (string, error) {
	prefix := "INV-" + date.Format("20060102") + "-"

	count, err := s.invoiceRepo.CountByPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

// parseTotal accepts zero: a zero-value invoice is legal and counts as paid.
func parseTotal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: total_amount must be a non-negative number", ErrInvalidAmount)
	}
	return d, nil
}

// --- Mapping ---

func toInvoiceResponse(ev EvaluatedInvoice) InvoiceResponse {
	inv := ev.Invoice
	resp := InvoiceResponse{
		ID:               inv.ID.String(),
		InvoiceNo:        inv.InvoiceNo,
		CustomerID:       inv.CustomerID.String(),
		InvoiceDate:      inv.InvoiceDate.Format("2006-01-02"),
		TotalAmount:      formatAmount(ev.Core.Total),
		PaidAmount:       formatAmount(ev.Status.Paid),
		Remaining:        formatAmount(ev.Status.Remaining),
		PaymentStatus:    string(ev.Status.Status),
		State:            string(ev.State.Label),
		CollectibleDue:   formatAmount(ev.State.CollectibleDue),
		Settled:          inv.Settled,
		SettlementReason: inv.SettlementReason,
		Note:             inv.Note,
		CreatedAt:        inv.CreatedAt.Format(time.RFC3339),
	}

	if inv.Customer != nil {
		resp.CustomerName = inv.Customer.Name
	}
	if inv.SettledBy != nil {
		s := inv.SettledBy.String()
		resp.SettledBy = &s
	}
	if inv.SettledAt != nil {
		s := inv.SettledAt.Format(time.RFC3339)
		resp.SettledAt = &s
	}

	return resp
}

func toStatusResponse(ev EvaluatedInvoice) InvoiceStatusResponse {
	return InvoiceStatusResponse{
		InvoiceID: ev.Invoice.ID.String(),
		InvoiceNo: ev.Invoice.InvoiceNo,
		Status:    ev.Status,
		State:     ev.State,
	}
}
