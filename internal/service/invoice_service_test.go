package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"billing/internal/ledger"
	"billing/internal/model"
	ws "billing/internal/websocket"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_DeriveStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.seedCustomer(t, "Asha Traders")

	t.Run("legacy amount plus ledger rows", func(t *testing.T) {
		inv := env.seedInvoice(t, customer, "INV-A-1", "2024-01-10", "1000", `{"paidAmount": 300}`)
		env.seedPayment(t, inv, "200")

		ev, err := env.ledger.DeriveStatus(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPartial, ev.Status.Status)
		assert.Equal(t, "500.00", formatAmount(ev.Status.Paid))
		assert.Equal(t, "500.00", formatAmount(ev.State.CollectibleDue))
		assert.Len(t, ev.Payments, 1)
	})

	t.Run("snake case legacy key within tolerance", func(t *testing.T) {
		inv := env.seedInvoice(t, customer, "INV-A-2", "2024-01-11", "1000", `{"paid_amount": "999.60"}`)

		ev, err := env.ledger.DeriveStatus(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPaid, ev.Status.Status)
		assert.True(t, ev.State.IsPaid)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		_, err := env.ledger.DeriveStatus(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrInvoiceNotFound)
	})
}

func TestInvoiceService_CreateInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.seedCustomer(t, "Ravi Stores")
	staff := uuid.New().String()

	first, err := env.invoice.CreateInvoice(ctx, staff, CreateInvoiceRequest{
		CustomerID:  customer.ID.String(),
		InvoiceDate: "2024-02-01",
		TotalAmount: "1500.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-20240201-00001", first.InvoiceNo)
	assert.Equal(t, "unpaid", first.PaymentStatus)
	assert.Equal(t, "1500.00", first.CollectibleDue)
	assert.Equal(t, "Ravi Stores", first.CustomerName)

	second, err := env.invoice.CreateInvoice(ctx, staff, CreateInvoiceRequest{
		CustomerID:  customer.ID.String(),
		InvoiceDate: "2024-02-01",
		TotalAmount: "200",
		Metadata:    json.RawMessage(`{"paidAmount": 50}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-20240201-00002", second.InvoiceNo)
	assert.Equal(t, "partial", second.PaymentStatus)
	assert.Equal(t, "150.00", second.Remaining)

	t.Run("zero total is paid", func(t *testing.T) {
		resp, err := env.invoice.CreateInvoice(ctx, staff, CreateInvoiceRequest{
			CustomerID:  customer.ID.String(),
			TotalAmount: "0",
		})
		require.NoError(t, err)
		assert.Equal(t, "paid", resp.PaymentStatus)
		assert.Equal(t, "INV-20240315-00001", resp.InvoiceNo)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := env.invoice.CreateInvoice(ctx, staff, CreateInvoiceRequest{CustomerID: uuid.New().String(), TotalAmount: "10"})
		assert.ErrorIs(t, err, ErrCustomerNotFound)

		_, err = env.invoice.CreateInvoice(ctx, staff, CreateInvoiceRequest{CustomerID: customer.ID.String(), TotalAmount: "-1"})
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = env.invoice.CreateInvoice(ctx, staff, CreateInvoiceRequest{CustomerID: customer.ID.String(), TotalAmount: "10", Metadata: json.RawMessage(`{oops`)})
		assert.Error(t, err)

		_, err = env.invoice.CreateInvoice(ctx, staff, CreateInvoiceRequest{CustomerID: "nope", TotalAmount: "10"})
		assert.Error(t, err)
	})

	logs, total, err := env.audit.GetAuditLogs(ctx, AuditFilter{Action: model.ActionCreateInvoice})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, staff, logs[0].UserID)
}

func TestInvoiceService_DefaultDateKeepsNumberOrderWithinDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.seedCustomer(t, "Same Day Mart")

	_, err := env.invoice.CreateInvoice(ctx, "", CreateInvoiceRequest{
		CustomerID:  customer.ID.String(),
		InvoiceNo:   "INV-A",
		TotalAmount: "100",
	})
	require.NoError(t, err)
	_, err = env.invoice.CreateInvoice(ctx, "", CreateInvoiceRequest{
		CustomerID:  customer.ID.String(),
		InvoiceNo:   "INV-Z",
		InvoiceDate: "2024-03-15",
		TotalAmount: "100",
	})
	require.NoError(t, err)

	stored, err := env.invoices.FindByNumber(ctx, "INV-A")
	require.NoError(t, err)
	assert.True(t, stored.InvoiceDate.UTC().Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)), "stored %s", stored.InvoiceDate)

	plan, err := env.payment.PreviewAllocation(ctx, customer.ID.String(), CustomerPaymentRequest{Amount: "100"})
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, "INV-A", plan.Allocations[0].InvoiceNo)
	assert.Equal(t, "2024-03-15", plan.Allocations[0].InvoiceDate)
}

func TestInvoiceService_SettleInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.seedCustomer(t, "Meena Textiles")
	inv := env.seedInvoice(t, customer, "INV-S-1", "2024-01-05", "1000", "{}")
	env.seedPayment(t, inv, "400")
	staff := uuid.New().String()

	_, err := env.invoice.SettleInvoice(ctx, inv.ID.String(), staff, SettleInvoiceRequest{Reason: ""})
	assert.ErrorIs(t, err, ErrSettlementReasonRequired)

	resp, err := env.invoice.SettleInvoice(ctx, inv.ID.String(), staff, SettleInvoiceRequest{Reason: "damaged goods discount"})
	require.NoError(t, err)
	assert.True(t, resp.Settled)
	assert.Equal(t, "settled", resp.State)
	assert.Equal(t, "partial", resp.PaymentStatus)
	assert.Equal(t, "0.00", resp.CollectibleDue)
	assert.Equal(t, "600.00", resp.Remaining)
	require.NotNil(t, resp.SettledBy)
	assert.Equal(t, staff, *resp.SettledBy)

	_, err = env.invoice.SettleInvoice(ctx, inv.ID.String(), staff, SettleInvoiceRequest{Reason: "again please"})
	assert.ErrorIs(t, err, ErrInvoiceSettled)

	_, err = env.invoice.SettleInvoice(ctx, uuid.New().String(), staff, SettleInvoiceRequest{Reason: "missing one"})
	assert.ErrorIs(t, err, ErrInvoiceNotFound)

	assert.Equal(t, []string{ws.EventInvoiceSettled}, env.events.names())

	logs, _, err := env.audit.GetAuditLogs(ctx, AuditFilter{Action: model.ActionSettleInvoice, EntityID: inv.ID.String()})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Details, `"written_off_amount":"600.00"`)

	status, err := env.invoice.GetInvoiceStatusByNumber(ctx, "INV-S-1")
	require.NoError(t, err)
	assert.True(t, status.State.IsSettled)
	assert.Equal(t, ledger.StatusSettled, status.State.Label)
}

func TestInvoiceService_ListAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedCustomer(t, "Customer A")
	b := env.seedCustomer(t, "Customer B")

	paid := env.seedInvoice(t, a, "INV-L-1", "2024-01-01", "100", "{}")
	env.seedPayment(t, paid, "100")
	env.seedInvoice(t, a, "INV-L-2", "2024-01-02", "300", "{}")
	env.seedInvoice(t, b, "INV-L-3", "2024-01-03", "50", "{}")

	list, total, err := env.invoice.ListInvoices(ctx, InvoiceFilter{CustomerID: a.ID.String(), Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, list, 2)

	byNo := map[string]InvoiceResponse{}
	for _, r := range list {
		byNo[r.InvoiceNo] = r
	}
	assert.Equal(t, "paid", byNo["INV-L-1"].PaymentStatus)
	assert.Equal(t, "unpaid", byNo["INV-L-2"].PaymentStatus)

	settled := false
	_, total, err = env.invoice.ListInvoices(ctx, InvoiceFilter{Settled: &settled})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	detail, err := env.invoice.GetInvoice(ctx, paid.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "100.00", detail.PaidAmount)
	require.Len(t, detail.Payments, 1)
	assert.Equal(t, "cash", detail.Payments[0].Method)

	_, err = env.invoice.GetInvoice(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)
}
