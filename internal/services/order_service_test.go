package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/reconcile"
)

func pendingOrder(t *testing.T, env *testEnv, qty string) *models.Order {
	t.Helper()
	svc := NewOrderService(env.orders, env.clock, env.log)
	o, err := svc.Create(context.Background(), CreateOrderRequest{
		ClientID: "client-1",
		Product:  "AGO",
		Quantity: dec(qty),
	})
	require.NoError(t, err)
	return o
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)
	svc := NewOrderService(env.orders, env.clock, env.log)
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateOrderRequest{ClientID: "c1", Product: "PMS", Quantity: dec("1000"), OrderedAt: "2024-06-01"})
	require.NoError(t, err)
	assert.Len(t, o.OrderRef, 5)
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.True(t, day("2024-06-01").Equal(o.OrderedAt))

	_, err = svc.Create(ctx, CreateOrderRequest{ClientID: "c1", Product: "PMS"})
	assertKind(t, err, ErrValidation, "Quantity must be greater than 0")

	_, err = svc.Create(ctx, CreateOrderRequest{Product: "PMS", Quantity: dec("1")})
	assertKind(t, err, ErrValidation, "Client id is required")
}

func TestApproveComboWithEmbeddedPayment(t *testing.T) {
	env := newTestEnv(t)
	svc := NewOrderService(env.orders, env.clock, env.log)
	ctx := context.Background()
	o := pendingOrder(t, env, "1000")

	res, err := svc.Approve(ctx, o.ID, ApproveRequest{
		OMC:         "Star Oil",
		BDCName:     "Juwel",
		Depot:       "Tema",
		PBDCOMC:     "10.50",
		SBDCOMC:     "11",
		PTax:        "1.2",
		STax:        "1.5",
		DueDate:     "2024-07-01",
		PaymentType: "Cash",
		Shareholder: "Rex",
	})
	require.NoError(t, err)

	got := env.reload(t, o.ID)
	assert.Equal(t, models.OrderStatusApproved, got.Status)
	assert.Equal(t, models.OrderTypeCombo, got.OrderType)
	assertDec(t, "12500", got.TotalDebt.Decimal)
	assertDec(t, "0.5", got.MarginPrice.Decimal)
	assertDec(t, "0.3", got.MarginTax.Decimal)
	assertDec(t, "0.5", got.Margin.Decimal)
	assertDec(t, "0.8", got.TotalMarginPerUnit.Decimal)
	assertDec(t, "800", got.Expected.Decimal)
	assertDec(t, "800", reconcile.OrderReturns(got))
	assertDec(t, "1500", reconcile.TaxDue(got))
	assert.Equal(t, "Juwel", got.BDCName)
	require.NotNil(t, got.DueDate)

	require.NotNil(t, res.EmbeddedPayment)
	assertDec(t, "10500", res.EmbeddedPayment.Amount)
	assert.Equal(t, "Cash", res.EmbeddedPayment.PaymentType)

	_, err = svc.Approve(ctx, o.ID, ApproveRequest{OMC: "Star Oil", BDCName: "Juwel", Depot: "Tema", SBDCOMC: "11", STax: "1.5"})
	assertKind(t, err, ErrConflict, "already approved")
}

func TestApproveTaxOnly(t *testing.T) {
	env := newTestEnv(t)
	svc := NewOrderService(env.orders, env.clock, env.log)
	o := pendingOrder(t, env, "200")

	res, err := svc.Approve(context.Background(), o.ID, ApproveRequest{
		OrderType:   "tax",
		OMC:         "Zen",
		Depot:       "Takoradi",
		PTax:        "1",
		STax:        "1.25",
		PaymentType: "cash",
	})
	require.NoError(t, err)
	assert.Nil(t, res.EmbeddedPayment, "tax orders carry no purchase payment")
	assert.Equal(t, models.OrderTypeTax, res.Order.OrderType)
	assertDec(t, "250", res.Order.TotalDebt.Decimal)
	assertDec(t, "0.25", res.Order.Margin.Decimal)
	assertDec(t, "50", res.Order.Expected.Decimal)
}

func TestApproveValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := NewOrderService(env.orders, env.clock, env.log)
	o := pendingOrder(t, env, "10")

	cases := []struct {
		name string
		req  ApproveRequest
		kind error
		msg  string
	}{
		{"missing depot", ApproveRequest{OMC: "Zen", BDCName: "B"}, ErrValidation, "OMC and DEPOT are required."},
		{"missing bdc", ApproveRequest{OMC: "Zen", Depot: "D", SBDCOMC: "1", STax: "1"}, ErrValidation, "BDC is required for this order type."},
		{"bad type", ApproveRequest{OrderType: "swap", OMC: "Zen", Depot: "D", BDCName: "B"}, ErrValidation, "Invalid order type."},
		{"sale without price", ApproveRequest{OrderType: "s_bdc", OMC: "Zen", Depot: "D", BDCName: "B"}, ErrValidation, "S-BDC is required for S-BDC type."},
		{"tax without rate", ApproveRequest{OrderType: "s_tax", OMC: "Zen", Depot: "D"}, ErrValidation, "S-Tax is required for S-Tax type."},
		{"combo incomplete", ApproveRequest{OMC: "Zen", Depot: "D", BDCName: "B", SBDCOMC: "1"}, ErrValidation, "S-BDC and S-Tax are required for Combo type."},
		{"bad due date", ApproveRequest{OrderType: "sale", OMC: "Zen", Depot: "D", BDCName: "B", SBDCOMC: "1", DueDate: "01/07/2024"}, ErrValidation, "Invalid date format"},
		{"payment without purchase price", ApproveRequest{OrderType: "sale", OMC: "Zen", Depot: "D", BDCName: "B", SBDCOMC: "1", PaymentType: "credit"}, ErrValidation, "P-BDC is required to compute payment amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Approve(context.Background(), o.ID, tc.req)
			assertKind(t, err, tc.kind, tc.msg)
		})
	}

	_, err := svc.Approve(context.Background(), 999, ApproveRequest{OMC: "Zen", Depot: "D", BDCName: "B", SBDCOMC: "1", STax: "1"})
	assertKind(t, err, ErrNotFound, "Order not found")
	assert.Equal(t, models.OrderStatusPending, env.reload(t, o.ID).Status)
}
