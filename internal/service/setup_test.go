package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"billing/internal/database"
	"billing/internal/lock"
	"billing/internal/model"
	"billing/internal/repository"
	ws "billing/internal/websocket"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []ws.Event
}

func (p *recordingPublisher) Publish(event ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.Event)
	}
	return names
}

type testEnv struct {
	db        *gorm.DB
	customers repository.CustomerRepository
	invoices  repository.InvoiceRepository
	payments  repository.PaymentRepository
	audits    repository.AuditRepository
	ledger    LedgerService
	invoice   *invoiceService
	payment   *paymentService
	customer  CustomerService
	audit     AuditService
	events    *recordingPublisher
}

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	// every pooled connection to :memory: would get its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	env := &testEnv{
		db:        db,
		customers: repository.NewCustomerRepository(db),
		invoices:  repository.NewInvoiceRepository(db),
		payments:  repository.NewPaymentRepository(db),
		audits:    repository.NewAuditRepository(db),
		events:    &recordingPublisher{},
	}
	txManager := repository.NewTransactionManager(db)
	env.ledger = NewLedgerService(env.invoices, env.payments)

	env.invoice = NewInvoiceService(env.invoices, env.customers, env.audits, env.ledger, txManager, env.events).(*invoiceService)
	env.invoice.now = func() time.Time { return fixedNow }

	env.payment = NewPaymentService(
		env.customers,
		env.payments,
		repository.NewCustomerPaymentRepository(db),
		env.audits,
		env.ledger,
		txManager,
		lock.NewMemoryLocker(),
		time.Second,
		env.events,
	).(*paymentService)
	env.payment.now = func() time.Time { return fixedNow }

	env.customer = NewCustomerService(env.customers, env.audits, txManager)
	env.audit = NewAuditService(env.audits)
	return env
}

func (e *testEnv) seedCustomer(t *testing.T, name string) model.Customer {
	t.Helper()
	c := model.Customer{Name: name, IsActive: true}
	require.NoError(t, e.customers.Create(context.Background(), &c))
	return c
}

func (e *testEnv) seedInvoice(t *testing.T, customer model.Customer, number, date, total, metadata string) model.Invoice {
	t.Helper()
	d, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	inv := model.Invoice{
		InvoiceNo:   number,
		CustomerID:  customer.ID,
		InvoiceDate: d,
		TotalAmount: decimal.RequireFromString(total),
		Metadata:    metadata,
	}
	require.NoError(t, e.invoices.Create(context.Background(), &inv))
	return inv
}

func (e *testEnv) seedPayment(t *testing.T, inv model.Invoice, amount string) {
	t.Helper()
	p := model.Payment{
		InvoiceID: inv.ID,
		Amount:    decimal.RequireFromString(amount),
		Method:    model.MethodCash,
		PaidAt:    fixedNow,
	}
	require.NoError(t, e.payments.Create(context.Background(), &p))
}
