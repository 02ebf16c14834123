package ledger

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestParseAmount(t *testing.T) {
	s := "12.5"
	f := 3.25
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "0"},
		{"string", "300", "300"},
		{"padded string", " 42.10 ", "42.1"},
		{"empty string", "", "0"},
		{"garbage string", "abc", "0"},
		{"string pointer", &s, "12.5"},
		{"nil string pointer", (*string)(nil), "0"},
		{"json number", json.Number("99.99"), "99.99"},
		{"bad json number", json.Number("x"), "0"},
		{"float", 10.5, "10.5"},
		{"float pointer", &f, "3.25"},
		{"nan", math.NaN(), "0"},
		{"inf", math.Inf(1), "0"},
		{"negative inf", math.Inf(-1), "0"},
		{"int", 7, "7"},
		{"int64", int64(8), "8"},
		{"decimal", dec("1.01"), "1.01"},
		{"null decimal", decimal.NullDecimal{}, "0"},
		{"unsupported", struct{}{}, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertDecimal(t, tc.want, ParseAmount(tc.in))
		})
	}
}

func TestLegacyPaidAmount(t *testing.T) {
	assertDecimal(t, "300", LegacyPaidAmount([]byte(`{"paidAmount":"300"}`)))
	assertDecimal(t, "120.5", LegacyPaidAmount([]byte(`{"paidAmount":120.5,"note":"x"}`)))
	assertDecimal(t, "75", LegacyPaidAmount([]byte(`{"paid_amount":75}`)))
	assertDecimal(t, "0", LegacyPaidAmount([]byte(`{"paidAmount":"n/a"}`)))
	assertDecimal(t, "0", LegacyPaidAmount([]byte(`{"paidAmount":null}`)))
	assertDecimal(t, "0", LegacyPaidAmount([]byte(`{"other":1}`)))
	assertDecimal(t, "0", LegacyPaidAmount([]byte(`not json`)))
	assertDecimal(t, "0", LegacyPaidAmount(nil))
}

func TestDeriveStatusFromData_Scenarios(t *testing.T) {
	id := uuid.New()

	t.Run("fully paid through the ledger", func(t *testing.T) {
		inv := Invoice{ID: id, Total: dec("1000")}
		st := DeriveStatusFromData(inv, []Payment{{InvoiceID: id, Amount: dec("1000")}})
		assert.Equal(t, StatusPaid, st.Status)
		assertDecimal(t, "1000", st.Paid)
		assertDecimal(t, "0", st.Remaining)
	})

	t.Run("legacy amount only", func(t *testing.T) {
		inv := Invoice{ID: id, Total: dec("1000"), LegacyPaidAmount: ParseAmount("300")}
		st := DeriveStatusFromData(inv, nil)
		assert.Equal(t, StatusPartial, st.Status)
		assertDecimal(t, "300", st.Paid)
		assertDecimal(t, "700", st.Remaining)
	})

	t.Run("inside the rounding band", func(t *testing.T) {
		inv := Invoice{ID: id, Total: dec("500.3")}
		st := DeriveStatusFromData(inv, []Payment{{InvoiceID: id, Amount: dec("500")}})
		assert.Equal(t, StatusPaid, st.Status)
		assertDecimal(t, "500", st.Paid)
		assertDecimal(t, "0.3", st.Remaining)
	})

	t.Run("just outside the rounding band", func(t *testing.T) {
		inv := Invoice{ID: id, Total: dec("500.6")}
		st := DeriveStatusFromData(inv, []Payment{{InvoiceID: id, Amount: dec("500")}})
		assert.Equal(t, StatusPartial, st.Status)
	})

	t.Run("nothing paid", func(t *testing.T) {
		st := DeriveStatusFromData(Invoice{ID: id, Total: dec("250")}, nil)
		assert.Equal(t, StatusUnpaid, st.Status)
		assertDecimal(t, "0", st.Paid)
		assertDecimal(t, "250", st.Remaining)
	})

	t.Run("zero total is always paid", func(t *testing.T) {
		st := DeriveStatusFromData(Invoice{ID: id}, nil)
		assert.Equal(t, StatusPaid, st.Status)
		assertDecimal(t, "0", st.Remaining)
	})

	t.Run("legacy and ledger are summed", func(t *testing.T) {
		inv := Invoice{ID: id, Total: dec("1000"), LegacyPaidAmount: dec("200")}
		st := DeriveStatusFromData(inv, []Payment{
			{InvoiceID: id, Amount: dec("300")},
			{InvoiceID: id, Amount: dec("100")},
		})
		assert.Equal(t, StatusPartial, st.Status)
		assertDecimal(t, "600", st.Paid)
		assertDecimal(t, "400", st.Remaining)
	})
}

func TestDeriveStatusFromData_Clamps(t *testing.T) {
	id := uuid.New()

	t.Run("overpayment is clamped to the total", func(t *testing.T) {
		inv := Invoice{ID: id, Total: dec("100"), LegacyPaidAmount: dec("80")}
		st := DeriveStatusFromData(inv, []Payment{{InvoiceID: id, Amount: dec("80")}})
		assertDecimal(t, "100", st.Paid)
		assertDecimal(t, "0", st.Remaining)
		assert.Equal(t, StatusPaid, st.Status)
	})

	t.Run("negative rows do not reduce the sum", func(t *testing.T) {
		inv := Invoice{ID: id, Total: dec("100")}
		st := DeriveStatusFromData(inv, []Payment{
			{InvoiceID: id, Amount: dec("40")},
			{InvoiceID: id, Amount: dec("-500")},
			{InvoiceID: id, Amount: ParseAmount("garbage")},
		})
		assertDecimal(t, "40", st.Paid)
		assertDecimal(t, "60", st.Remaining)
	})

	t.Run("negative legacy amount alone clamps to zero", func(t *testing.T) {
		st := DeriveStatusFromData(Invoice{ID: id, Total: dec("10"), LegacyPaidAmount: dec("-3")}, nil)
		assertDecimal(t, "0", st.Paid)
		assert.Equal(t, StatusUnpaid, st.Status)
	})

	t.Run("negative legacy amount is summed before clamping", func(t *testing.T) {
		inv := Invoice{ID: id, Total: dec("1000"), LegacyPaidAmount: dec("-100")}
		st := DeriveStatusFromData(inv, []Payment{{InvoiceID: id, Amount: dec("300")}})
		assertDecimal(t, "200", st.Paid)
		assertDecimal(t, "800", st.Remaining)
		assert.Equal(t, StatusPartial, st.Status)
	})

	t.Run("negative total is treated as zero", func(t *testing.T) {
		st := DeriveStatusFromData(Invoice{ID: id, Total: dec("-10")}, nil)
		assertDecimal(t, "0", st.Paid)
		assertDecimal(t, "0", st.Remaining)
		assert.Equal(t, StatusPaid, st.Status)
	})

	t.Run("rows for other invoices are ignored", func(t *testing.T) {
		st := DeriveStatusFromData(Invoice{ID: id, Total: dec("10")}, []Payment{{InvoiceID: uuid.New(), Amount: dec("10")}})
		assertDecimal(t, "0", st.Paid)
	})
}

func TestDeriveStatusFromData_Invariants(t *testing.T) {
	id := uuid.New()
	totals := []string{"0", "0.4", "1", "99.99", "500.3", "1000", "123456.7891"}
	rows := [][]string{nil, {"0"}, {"1"}, {"50", "50"}, {"-5", "20"}, {"999999"}, {"0.1", "0.2", "0.3"}}
	legacy := []string{"0", "10", "-1", "1000000"}

	for _, total := range totals {
		for _, amounts := range rows {
			for _, l := range legacy {
				payments := make([]Payment, 0, len(amounts))
				for _, a := range amounts {
					payments = append(payments, Payment{InvoiceID: id, Amount: dec(a)})
				}
				inv := Invoice{ID: id, Total: dec(total), LegacyPaidAmount: dec(l)}

				first := DeriveStatusFromData(inv, payments)
				second := DeriveStatusFromData(inv, payments)

				require.False(t, first.Paid.IsNegative())
				require.True(t, first.Paid.LessThanOrEqual(inv.Total))
				require.True(t, first.Remaining.Equal(inv.Total.Sub(first.Paid)))
				require.Equal(t, first.Status, second.Status)
				require.True(t, first.Paid.Equal(second.Paid))
				require.True(t, first.Remaining.Equal(second.Remaining))
			}
		}
	}
}

func TestPaidToleranceIsHalfUnit(t *testing.T) {
	assertDecimal(t, "0.5", PaidTolerance())

	st := DeriveStatusFromData(Invoice{Total: dec("100"), LegacyPaidAmount: dec("99.5")}, nil)
	assert.Equal(t, StatusPaid, st.Status)
	st = DeriveStatusFromData(Invoice{Total: dec("100"), LegacyPaidAmount: dec("99.49")}, nil)
	assert.Equal(t, StatusPartial, st.Status)
}
