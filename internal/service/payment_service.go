package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"billing/internal/ledger"
	"billing/internal/lock"
	"billing/internal/logger"
	"billing/internal/model"
	"billing/internal/repository"
	ws "billing/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type RecordPaymentRequest struct {
	Amount string `json:"amount" binding:"required"`
	Method string `json:"method" binding:"omitempty,oneof=cash card upi other razorpay"`
	PaidAt string `json:"paid_at"` // defaults to now
	Note   string `json:"note" binding:"max=500"`
}

type CustomerPaymentRequest struct {
	Amount     string `json:"amount" binding:"required"`
	Method     string `json:"method" binding:"omitempty,oneof=cash card upi other razorpay"`
	Reference  string `json:"reference" binding:"max=100"`
	ReceivedAt string `json:"received_at"` // defaults to now
}

type PaymentResponse struct {
	ID              string  `json:"id"`
	InvoiceID       string  `json:"invoice_id"`
	Amount          string  `json:"amount"`
	Method          string  `json:"method"`
	PaidAt          string  `json:"paid_at"`
	SourcePaymentID *string `json:"source_payment_id"`
	Note            string  `json:"note"`
	CreatedAt       string  `json:"created_at"`
}

type RecordPaymentResponse struct {
	Payment PaymentResponse `json:"payment"`
	Invoice InvoiceResponse `json:"invoice"`
}

type AllocationLine struct {
	InvoiceID       string `json:"invoice_id"`
	InvoiceNo       string `json:"invoice_no"`
	InvoiceDate     string `json:"invoice_date"`
	DueBefore       string `json:"due_before"`
	AllocatedAmount string `json:"allocated_amount"`
	DueAfter        string `json:"due_after"`
}

type AllocationResponse struct {
	CustomerID        string           `json:"customer_id"`
	CustomerPaymentID *string          `json:"customer_payment_id"` // nil for previews
	PaymentAmount     string           `json:"payment_amount"`
	TotalAllocated    string           `json:"total_allocated"`
	Unapplied         string           `json:"unapplied"` // reported only, never stored as credit
	Allocations       []AllocationLine `json:"allocations"`
	Preview           bool             `json:"preview"`
}

type OutstandingInvoice struct {
	InvoiceID      string `json:"invoice_id"`
	InvoiceNo      string `json:"invoice_no"`
	InvoiceDate    string `json:"invoice_date"`
	TotalAmount    string `json:"total_amount"`
	PaidAmount     string `json:"paid_amount"`
	CollectibleDue string `json:"collectible_due"`
	Status         string `json:"status"`
}

type OutstandingResponse struct {
	CustomerID       string               `json:"customer_id"`
	TotalCollectible string               `json:"total_collectible"`
	Invoices         []OutstandingInvoice `json:"invoices"` // allocation order
}

// --- Interface ---

type PaymentService interface {
	RecordPayment(ctx context.Context, invoiceID string, staffID string, req RecordPaymentRequest) (RecordPaymentResponse, error)
	PreviewAllocation(ctx context.Context, customerID string, req CustomerPaymentRequest) (AllocationResponse, error)
	AllocateCustomerPayment(ctx context.Context, customerID string, staffID string, req CustomerPaymentRequest) (AllocationResponse, error)
	CustomerOutstanding(ctx context.Context, customerID string) (OutstandingResponse, error)
}

type paymentService struct {
	customerRepo        repository.CustomerRepository
	paymentRepo         repository.PaymentRepository
	customerPaymentRepo repository.CustomerPaymentRepository
	auditRepo           repository.AuditRepository
	ledger              LedgerService
	txManager           repository.TransactionManager
	locker              lock.Locker
	lockWait            time.Duration
	events              EventPublisher
	now                 func() time.Time
}

func NewPaymentService(
	customerRepo repository.CustomerRepository,
	paymentRepo repository.PaymentRepository,
	customerPaymentRepo repository.CustomerPaymentRepository,
	auditRepo repository.AuditRepository,
	ledgerService LedgerService,
	txManager repository.TransactionManager,
	locker lock.Locker,
	lockWait time.Duration,
	events EventPublisher,
) PaymentService {
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	return &paymentService{
		customerRepo:        customerRepo,
		paymentRepo:         paymentRepo,
		customerPaymentRepo: customerPaymentRepo,
		auditRepo:           auditRepo,
		ledger:              ledgerService,
		txManager:           txManager,
		locker:              locker,
		lockWait:            lockWait,
		events:              events,
		now:                 time.Now,
	}
}

// --- Implementation ---

func (s *paymentService) RecordPayment(ctx context.Context, invoiceID string, staffID string, req RecordPaymentRequest) (RecordPaymentResponse, error) {
	if err := validateRequest(req); err != nil {
		return RecordPaymentResponse{}, err
	}
	id, err := parseID(invoiceID)
	if err != nil {
		return RecordPaymentResponse{}, err
	}
	amount, err := parsePositiveAmount(req.Amount)
	if err != nil {
		return RecordPaymentResponse{}, err
	}
	paidAt, err := parseDate(req.PaidAt, s.now())
	if err != nil {
		return RecordPaymentResponse{}, err
	}

	method := req.Method
	if method == "" {
		method = model.MethodCash
	}

	current, err := s.ledger.DeriveStatus(ctx, id)
	if err != nil {
		return RecordPaymentResponse{}, err
	}
	customerID := current.Invoice.CustomerID

	unlock, err := s.lockCustomer(ctx, customerID)
	if err != nil {
		return RecordPaymentResponse{}, err
	}
	defer unlock()

	var payment model.Payment
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if lockErr := s.lockCustomerRow(txCtx, customerID); lockErr != nil {
			return lockErr
		}
		ev, evalErr := s.ledger.DeriveStatus(txCtx, id)
		if evalErr != nil {
			return evalErr
		}
		if ev.State.IsSettled {
			return ErrInvoiceSettled
		}
		due := ev.State.CollectibleDue
		if !due.IsPositive() || amount.GreaterThan(due.Add(ledger.PaidTolerance())) {
			return fmt.Errorf("%w: due %s", ErrAmountExceedsDue, formatAmount(due))
		}

		payment = model.Payment{
			InvoiceID:  id,
			Amount:     amount,
			Method:     method,
			PaidAt:     paidAt,
			RecordedBy: actorID(staffID),
			Note:       req.Note,
		}
		if createErr := s.paymentRepo.Create(txCtx, &payment); createErr != nil {
			return fmt.Errorf("failed to record payment: %w", createErr)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"payment_id": payment.ID.String(),
			"amount":     formatAmount(amount),
			"method":     method,
			"due_before": formatAmount(due),
		})
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:     actorID(staffID),
			Action:     model.ActionRecordPayment,
			EntityID:   id.String(),
			EntityName: ev.Invoice.InvoiceNo,
			Details:    string(details),
		})
	})
	if err != nil {
		return RecordPaymentResponse{}, err
	}

	after, err := s.ledger.DeriveStatus(ctx, id)
	if err != nil {
		return RecordPaymentResponse{}, err
	}

	publish(s.events, ws.EventPaymentRecorded, map[string]any{
		"invoice_id":  id.String(),
		"customer_id": customerID.String(),
		"amount":      formatAmount(amount),
		"status":      string(after.State.Label),
	})

	return RecordPaymentResponse{
		Payment: toPaymentResponse(payment),
		Invoice: toInvoiceResponse(after),
	}, nil
}

func (s *paymentService) PreviewAllocation(ctx context.Context, customerID string, req CustomerPaymentRequest) (AllocationResponse, error) {
	if err := validateRequest(req); err != nil {
		return AllocationResponse{}, err
	}
	id, err := parseID(customerID)
	if err != nil {
		return AllocationResponse{}, err
	}
	amount, err := parsePositiveAmount(req.Amount)
	if err != nil {
		return AllocationResponse{}, err
	}
	if err := s.ensureCustomer(ctx, id); err != nil {
		return AllocationResponse{}, err
	}

	plan, err := s.plan(ctx, id, amount)
	if err != nil {
		return AllocationResponse{}, err
	}

	resp := plan.response(id)
	resp.Preview = true
	return resp, nil
}

// AllocateCustomerPayment spreads a lump sum over the customer's open
// invoices oldest first. Allocation for one customer is serialized by the
// locker, and the plan is computed inside the transaction that persists it.
func (s *paymentService) AllocateCustomerPayment(ctx context.Context, customerID string, staffID string, req CustomerPaymentRequest) (AllocationResponse, error) {
	if err := validateRequest(req); err != nil {
		return AllocationResponse{}, err
	}
	id, err := parseID(customerID)
	if err != nil {
		return AllocationResponse{}, err
	}
	amount, err := parsePositiveAmount(req.Amount)
	if err != nil {
		return AllocationResponse{}, err
	}
	receivedAt, err := parseDate(req.ReceivedAt, s.now())
	if err != nil {
		return AllocationResponse{}, err
	}
	if err := s.ensureCustomer(ctx, id); err != nil {
		return AllocationResponse{}, err
	}

	method := req.Method
	if method == "" {
		method = model.MethodCash
	}

	unlock, err := s.lockCustomer(ctx, id)
	if err != nil {
		return AllocationResponse{}, err
	}
	defer unlock()

	var (
		result  allocationPlan
		payment model.CustomerPayment
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if lockErr := s.lockCustomerRow(txCtx, id); lockErr != nil {
			return lockErr
		}
		var planErr error
		result, planErr = s.plan(txCtx, id, amount)
		if planErr != nil {
			return planErr
		}
		if len(result.lines) == 0 {
			return ErrNothingToCollect
		}

		payment = model.CustomerPayment{
			CustomerID: id,
			Amount:     amount,
			Method:     method,
			Reference:  req.Reference,
			ReceivedAt: receivedAt,
			RecordedBy: actorID(staffID),
		}
		if createErr := s.customerPaymentRepo.Create(txCtx, &payment); createErr != nil {
			return fmt.Errorf("failed to record customer payment: %w", createErr)
		}

		rows := make([]model.Payment, 0, len(result.lines))
		for _, line := range result.lines {
			rows = append(rows, model.Payment{
				InvoiceID:       line.allocation.InvoiceID,
				Amount:          line.allocation.AllocatedAmount,
				Method:          model.MethodCustomerPayment,
				PaidAt:          receivedAt,
				SourcePaymentID: &payment.ID,
				RecordedBy:      actorID(staffID),
			})
		}
		if createErr := s.paymentRepo.CreateBatch(txCtx, rows); createErr != nil {
			return fmt.Errorf("failed to record allocations: %w", createErr)
		}

		invoiceNos := make([]string, 0, len(result.lines))
		for _, line := range result.lines {
			invoiceNos = append(invoiceNos, line.allocation.InvoiceNumber)
		}
		details, _ := json.Marshal(map[string]interface{}{
			"customer_payment_id": payment.ID.String(),
			"amount":              formatAmount(amount),
			"total_allocated":     formatAmount(result.summary.TotalAllocated),
			"unapplied":           formatAmount(result.summary.Unapplied),
			"invoices":            invoiceNos,
		})
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			UserID:   actorID(staffID),
			Action:   model.ActionAllocateCustomerPayment,
			EntityID: id.String(),
			Details:  string(details),
		})
	})
	if err != nil {
		return AllocationResponse{}, err
	}

	log := logger.WithComponent("payment")
	log.Info().
		Str("customer_id", id.String()).
		Str("customer_payment_id", payment.ID.String()).
		Str("amount", formatAmount(amount)).
		Int("invoices", len(result.lines)).
		Str("unapplied", formatAmount(result.summary.Unapplied)).
		Msg("customer payment allocated")

	publish(s.events, ws.EventPaymentAllocated, map[string]any{
		"customer_id":         id.String(),
		"customer_payment_id": payment.ID.String(),
		"total_allocated":     formatAmount(result.summary.TotalAllocated),
		"invoice_count":       len(result.lines),
	})

	resp := result.response(id)
	paymentID := payment.ID.String()
	resp.CustomerPaymentID = &paymentID
	return resp, nil
}

// lockCustomer serializes every payment write for one customer. Both direct
// invoice payments and lump-sum allocations take the same key.
func (s *paymentService) lockCustomer(ctx context.Context, customerID uuid.UUID) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	unlock, err := s.locker.Lock(lockCtx, "customer:"+customerID.String())
	if err != nil {
		log := logger.WithComponent("payment")
		log.Warn().Err(err).Str("customer_id", customerID.String()).Msg("customer payment lock not acquired")
		return nil, fmt.Errorf("%w: %v", ErrAllocationBusy, err)
	}
	return unlock, nil
}

// lockCustomerRow holds the customer row for the rest of the transaction.
// It covers writers that do not share this process's locker.
func (s *paymentService) lockCustomerRow(txCtx context.Context, customerID uuid.UUID) error {
	if err := s.customerRepo.LockForUpdate(txCtx, customerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCustomerNotFound
		}
		return fmt.Errorf("failed to lock customer: %w", err)
	}
	return nil
}

func (s *paymentService) CustomerOutstanding(ctx context.Context, customerID string) (OutstandingResponse, error) {
	id, err := parseID(customerID)
	if err != nil {
		return OutstandingResponse{}, err
	}
	if err := s.ensureCustomer(ctx, id); err != nil {
		return OutstandingResponse{}, err
	}

	evaluated, err := s.ledger.EvaluateCustomer(ctx, id)
	if err != nil {
		return OutstandingResponse{}, err
	}

	byID := make(map[uuid.UUID]EvaluatedInvoice, len(evaluated))
	collectibles := make([]ledger.Collectible, 0, len(evaluated))
	for _, ev := range evaluated {
		if c, ok := ledger.CollectibleFrom(ev.Core, ev.State); ok {
			collectibles = append(collectibles, c)
			byID[ev.Invoice.ID] = ev
		}
	}

	total := decimal.Zero
	invoices := make([]OutstandingInvoice, 0, len(collectibles))
	for _, c := range ledger.SortForFIFO(collectibles) {
		ev := byID[c.InvoiceID]
		total = total.Add(c.CollectibleDue)
		invoices = append(invoices, OutstandingInvoice{
			InvoiceID:      c.InvoiceID.String(),
			InvoiceNo:      c.InvoiceNumber,
			InvoiceDate:    c.Date.Format("2006-01-02"),
			TotalAmount:    formatAmount(ev.Core.Total),
			PaidAmount:     formatAmount(ev.Status.Paid),
			CollectibleDue: formatAmount(c.CollectibleDue),
			Status:         string(ev.State.Label),
		})
	}

	return OutstandingResponse{
		CustomerID:       id.String(),
		TotalCollectible: formatAmount(total),
		Invoices:         invoices,
	}, nil
}

func (s *paymentService) ensureCustomer(ctx context.Context, id uuid.UUID) error {
	if _, err := s.customerRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCustomerNotFound
		}
		return fmt.Errorf("failed to load customer: %w", err)
	}
	return nil
}

// --- Allocation plan ---

type planLine struct {
	allocation ledger.Allocation
	date       time.Time
	dueBefore  decimal.Decimal
}

type allocationPlan struct {
	lines   []planLine
	summary ledger.AllocationSummary
}

// plan runs load, derive, resolve, filter, order and allocate. It writes
// nothing.
func (s *paymentService) plan(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) (allocationPlan, error) {
	evaluated, err := s.ledger.EvaluateCustomer(ctx, customerID)
	if err != nil {
		return allocationPlan{}, err
	}

	collectibles := make([]ledger.Collectible, 0, len(evaluated))
	for _, ev := range evaluated {
		if c, ok := ledger.CollectibleFrom(ev.Core, ev.State); ok {
			collectibles = append(collectibles, c)
		}
	}
	ordered := ledger.SortForFIFO(collectibles)
	allocations := ledger.Allocate(ordered, amount)

	byID := make(map[uuid.UUID]ledger.Collectible, len(ordered))
	for _, c := range ordered {
		byID[c.InvoiceID] = c
	}
	lines := make([]planLine, 0, len(allocations))
	for _, a := range allocations {
		c := byID[a.InvoiceID]
		lines = append(lines, planLine{allocation: a, date: c.Date, dueBefore: c.CollectibleDue})
	}

	return allocationPlan{lines: lines, summary: ledger.Summarize(allocations, amount)}, nil
}

func (p allocationPlan) response(customerID uuid.UUID) AllocationResponse {
	lines := make([]AllocationLine, 0, len(p.lines))
	for _, l := range p.lines {
		lines = append(lines, AllocationLine{
			InvoiceID:       l.allocation.InvoiceID.String(),
			InvoiceNo:       l.allocation.InvoiceNumber,
			InvoiceDate:     l.date.Format("2006-01-02"),
			DueBefore:       formatAmount(l.dueBefore),
			AllocatedAmount: formatAmount(l.allocation.AllocatedAmount),
			DueAfter:        formatAmount(l.dueBefore.Sub(l.allocation.AllocatedAmount)),
		})
	}
	return AllocationResponse{
		CustomerID:     customerID.String(),
		PaymentAmount:  formatAmount(p.summary.PaymentAmount),
		TotalAllocated: formatAmount(p.summary.TotalAllocated),
		Unapplied:      formatAmount(p.summary.Unapplied),
		Allocations:    lines,
	}
}

func toPaymentResponse(p model.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:        p.ID.String(),
		InvoiceID: p.InvoiceID.String(),
		Amount:    formatAmount(p.Amount),
		Method:    p.Method,
		PaidAt:    p.PaidAt.Format(time.RFC3339),
		Note:      p.Note,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
	if p.SourcePaymentID != nil {
		s := p.SourcePaymentID.String()
		resp.SourcePaymentID = &s
	}
	return resp
}
