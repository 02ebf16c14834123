package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"billing/internal/database"
	"billing/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func seedInvoice(t *testing.T, repo InvoiceRepository, customerID uuid.UUID, number string, date time.Time) model.Invoice {
	t.Helper()
	inv := model.Invoice{
		InvoiceNo:   number,
		CustomerID:  customerID,
		InvoiceDate: date,
		TotalAmount: decimal.NewFromInt(100),
	}
	require.NoError(t, repo.Create(context.Background(), &inv))
	return inv
}

func TestInvoiceRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	customers := NewCustomerRepository(db)
	invoices := NewInvoiceRepository(db)

	customer := model.Customer{Name: "Priya Foods"}
	require.NoError(t, customers.Create(ctx, &customer))

	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	b := seedInvoice(t, invoices, customer.ID, "INV-20240105-00002", day)
	a := seedInvoice(t, invoices, customer.ID, "INV-20240105-00001", day)
	seedInvoice(t, invoices, customer.ID, "INV-20231230-00001", day.AddDate(0, 0, -6))

	t.Run("metadata defaults to an empty object", func(t *testing.T) {
		got, err := invoices.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "{}", got.Metadata)
		require.NotNil(t, got.Customer)
		assert.Equal(t, "Priya Foods", got.Customer.Name)
	})

	t.Run("list by customer is oldest first then by number", func(t *testing.T) {
		list, err := invoices.ListByCustomer(ctx, customer.ID)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "INV-20231230-00001", list[0].InvoiceNo)
		assert.Equal(t, a.ID, list[1].ID)
		assert.Equal(t, b.ID, list[2].ID)
	})

	t.Run("count by prefix", func(t *testing.T) {
		n, err := invoices.CountByPrefix(ctx, "INV-20240105-")
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
	})

	t.Run("mark settled is one-way", func(t *testing.T) {
		staff := uuid.New()
		at := day.Add(48 * time.Hour)

		ok, err := invoices.MarkSettled(ctx, a.ID, "goodwill", &staff, at)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = invoices.MarkSettled(ctx, a.ID, "second attempt", nil, at)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := invoices.FindByNumber(ctx, a.InvoiceNo)
		require.NoError(t, err)
		assert.True(t, got.Settled)
		assert.Equal(t, "goodwill", got.SettlementReason)
		require.NotNil(t, got.SettledBy)
		assert.Equal(t, staff, *got.SettledBy)

		ok, err = invoices.MarkSettled(ctx, uuid.New(), "ghost", nil, at)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("list filters", func(t *testing.T) {
		settled := true
		list, total, err := invoices.List(ctx, InvoiceListFilter{Settled: &settled, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Equal(t, a.ID, list[0].ID)

		_, total, err = invoices.List(ctx, InvoiceListFilter{InvoiceNo: "inv-2024", Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)

		list, total, err = invoices.List(ctx, InvoiceListFilter{CustomerID: &customer.ID, Page: 2, Limit: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		assert.Len(t, list, 1)
	})

	t.Run("unique invoice number", func(t *testing.T) {
		dup := model.Invoice{InvoiceNo: a.InvoiceNo, CustomerID: customer.ID, InvoiceDate: day, TotalAmount: decimal.NewFromInt(1)}
		assert.Error(t, invoices.Create(ctx, &dup))
	})
}

func TestTransactionManager(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	customers := NewCustomerRepository(db)
	tx := NewTransactionManager(db)

	boom := errors.New("boom")
	err := tx.RunInTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, customers.Create(txCtx, &model.Customer{Name: "Rolled Back"}))
		// nested calls join the outer transaction
		return tx.RunInTx(txCtx, func(inner context.Context) error {
			require.NoError(t, customers.Create(inner, &model.Customer{Name: "Also Rolled Back"}))
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)

	_, total, err := customers.List(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)

	require.NoError(t, tx.RunInTx(ctx, func(txCtx context.Context) error {
		return customers.Create(txCtx, &model.Customer{Name: "Committed"})
	}))
	list, total, err := customers.List(ctx, "commit", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Committed", list[0].Name)
}

func TestCustomerRepository_LockForUpdate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	customers := NewCustomerRepository(db)
	tx := NewTransactionManager(db)

	c := model.Customer{Name: "Locked Ltd"}
	require.NoError(t, customers.Create(ctx, &c))

	require.NoError(t, tx.RunInTx(ctx, func(txCtx context.Context) error {
		return customers.LockForUpdate(txCtx, c.ID)
	}))

	err := tx.RunInTx(ctx, func(txCtx context.Context) error {
		return customers.LockForUpdate(txCtx, uuid.New())
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPaymentRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	payments := NewPaymentRepository(db)
	sources := NewCustomerPaymentRepository(db)
	invoices := NewInvoiceRepository(db)

	customerID := uuid.New()
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	inv1 := seedInvoice(t, invoices, customerID, "INV-P-1", day)
	inv2 := seedInvoice(t, invoices, customerID, "INV-P-2", day)

	source := model.CustomerPayment{CustomerID: customerID, Amount: decimal.NewFromInt(150), Method: model.MethodUPI, ReceivedAt: day}
	require.NoError(t, sources.Create(ctx, &source))

	require.NoError(t, payments.CreateBatch(ctx, []model.Payment{
		{InvoiceID: inv1.ID, Amount: decimal.NewFromInt(100), Method: model.MethodCustomerPayment, PaidAt: day, SourcePaymentID: &source.ID},
		{InvoiceID: inv2.ID, Amount: decimal.NewFromInt(50), Method: model.MethodCustomerPayment, PaidAt: day, SourcePaymentID: &source.ID},
	}))
	require.NoError(t, payments.CreateBatch(ctx, nil))
	require.NoError(t, payments.Create(ctx, &model.Payment{InvoiceID: inv1.ID, Amount: decimal.RequireFromString("12.34"), Method: model.MethodCash, PaidAt: day.Add(time.Hour)}))

	rows, err := payments.ListByInvoice(ctx, inv1.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[1].Amount.Equal(decimal.RequireFromString("12.34")))

	rows, err = payments.ListByInvoiceIDs(ctx, []uuid.UUID{inv1.ID, inv2.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = payments.ListByInvoiceIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = payments.ListBySource(ctx, source.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	got, err := sources.FindByID(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MethodUPI, got.Method)
}

func TestAuditRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	audits := NewAuditRepository(db)

	require.NoError(t, audits.Log(ctx, &model.AuditLog{Action: model.ActionSettleInvoice, EntityID: "a", Details: "{}"}))
	require.NoError(t, audits.Log(ctx, &model.AuditLog{Action: model.ActionRecordPayment, EntityID: "a", Details: "{}"}))
	require.NoError(t, audits.Log(ctx, &model.AuditLog{Action: model.ActionRecordPayment, EntityID: "b", Details: "{}"}))

	logs, total, err := audits.List(ctx, AuditListFilter{Action: model.ActionRecordPayment, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, logs, 2)

	_, total, err = audits.List(ctx, AuditListFilter{EntityID: "a", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}
