package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/repositories"
)

func TestAllocateOldestFirstAcrossOrders(t *testing.T) {
	env := newTestEnv(t)
	svc := env.allocationService()
	ctx := context.Background()
	bank := env.bank(t)

	newer := env.taxOrder(t, "Star Oil", "B0002", "2", "100", day("2024-05-10"))
	older := env.taxOrder(t, "Star Oil", "A0001", "3", "100", day("2024-05-01"))
	env.taxOrder(t, "Other", "X0001", "1", "1000", day("2024-04-01"))

	out, err := svc.Allocate(ctx, AllocateRequest{
		BankID:      bank.ID,
		OMC:         "Star Oil",
		Amount:      dec("350"),
		Reference:   "GCB-77",
		PaidBy:      "Ama",
		PaymentDate: "2024-06-01",
	})
	require.NoError(t, err)
	require.Len(t, out.Allocated, 2)

	first, second := out.Allocated[0], out.Allocated[1]
	assert.Equal(t, older.ID, first.OrderID)
	assert.Equal(t, "A0001", first.OrderCode)
	assertDec(t, "300", first.Applied)
	assertDec(t, "0", first.RemainingAfter)
	assert.Equal(t, models.TaxPaymentPaid, first.Status)

	assert.Equal(t, newer.ID, second.OrderID)
	assertDec(t, "50", second.Applied)
	assertDec(t, "150", second.RemainingAfter)
	assert.Equal(t, models.TaxPaymentPartial, second.Status)

	assertDec(t, "350", first.Applied.Add(second.Applied))

	o := env.reload(t, older.ID)
	assert.Equal(t, models.TaxPaymentPaid, o.TaxPaymentStatus)
	assertDec(t, "300", o.TaxPaidAmount)
	n := env.reload(t, newer.ID)
	assert.Equal(t, models.TaxPaymentPartial, n.TaxPaymentStatus)
	assertDec(t, "50", n.TaxPaidAmount)
	require.NotNil(t, n.TaxPaidBy)
	assert.Equal(t, "Ama", *n.TaxPaidBy)

	bankID := bank.ID
	recs, err := env.taxes.List(ctx, repositories.TaxRecordFilter{SourceBankID: &bankID})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestAllocateRejectsMoreThanOutstanding(t *testing.T) {
	env := newTestEnv(t)
	svc := env.allocationService()
	ctx := context.Background()
	bank := env.bank(t)

	a := env.taxOrder(t, "Zen", "A0001", "1", "100", day("2024-05-01"))
	b := env.taxOrder(t, "Zen", "B0001", "1", "100", day("2024-05-02"))

	out, err := svc.Allocate(ctx, AllocateRequest{BankID: bank.ID, OMC: "Zen", Amount: dec("150")})
	require.NoError(t, err)
	require.Len(t, out.Allocated, 2)
	assertDec(t, "100", out.Allocated[0].Applied)
	assertDec(t, "50", out.Allocated[1].Applied)
	assert.Equal(t, a.ID, out.Allocated[0].OrderID)
	assert.Equal(t, b.ID, out.Allocated[1].OrderID)

	before := env.countTaxRecords(t)
	_, err = svc.Allocate(ctx, AllocateRequest{BankID: bank.ID, OMC: "Zen", Amount: dec("50.01")})
	assertKind(t, err, ErrValidation, "Amount exceeds OMC outstanding (")
	assert.Contains(t, err.Error(), "50.00")
	assert.Equal(t, before, env.countTaxRecords(t), "no records written")

	_, err = svc.Allocate(ctx, AllocateRequest{BankID: bank.ID, OMC: "Zen", Amount: dec("50")})
	require.NoError(t, err)

	_, err = svc.Allocate(ctx, AllocateRequest{BankID: bank.ID, OMC: "Zen", Amount: dec("1")})
	assertKind(t, err, ErrValidation, "No outstanding S-Tax for this OMC")
}

// failingInserts lets the first n inserts through and fails the rest.
type failingInserts struct {
	repositories.TaxRepository
	allowed int
}

func (f *failingInserts) Insert(ctx context.Context, rec *models.TaxRecord) error {
	if f.allowed == 0 {
		return errors.New("insert refused")
	}
	f.allowed--
	return f.TaxRepository.Insert(ctx, rec)
}

func TestAllocateReturnsCommittedOrdersOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bank := env.bank(t)
	older := env.taxOrder(t, "Zen", "A0001", "1", "100", day("2024-05-01"))
	newer := env.taxOrder(t, "Zen", "B0001", "1", "100", day("2024-05-02"))

	taxes := &failingInserts{TaxRepository: env.taxes, allowed: 1}
	svc := NewAllocationService(env.banks, env.orders, taxes, env.clock, env.metrics, env.log, "GHS")

	out, err := svc.Allocate(ctx, AllocateRequest{BankID: bank.ID, OMC: "Zen", Amount: dec("150")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert refused")
	require.NotNil(t, out)
	require.Len(t, out.Allocated, 1)
	assert.Equal(t, older.ID, out.Allocated[0].OrderID)
	assertDec(t, "100", out.Allocated[0].Applied)
	assert.Equal(t, models.TaxPaymentPaid, out.Allocated[0].Status)

	assert.EqualValues(t, 1, env.countTaxRecords(t))
	assert.Equal(t, models.TaxPaymentUnset, env.reload(t, newer.ID).TaxPaymentStatus)
}

func TestAllocateValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.allocationService()
	ctx := context.Background()
	bank := env.bank(t)
	env.taxOrder(t, "Zen", "A0001", "1", "100", day("2024-05-01"))

	cases := []struct {
		name string
		req  AllocateRequest
		kind error
		msg  string
	}{
		{"zero bank", AllocateRequest{OMC: "Zen", Amount: dec("1")}, ErrValidation, "Invalid bank id"},
		{"missing bank", AllocateRequest{BankID: 999, OMC: "Zen", Amount: dec("1")}, ErrNotFound, "Bank account not found"},
		{"no omc", AllocateRequest{BankID: bank.ID, OMC: "  ", Amount: dec("1")}, ErrValidation, "OMC is required"},
		{"zero amount", AllocateRequest{BankID: bank.ID, OMC: "Zen", Amount: decimal.Zero}, ErrValidation, "Amount must be greater than 0"},
		{"bad date", AllocateRequest{BankID: bank.ID, OMC: "Zen", Amount: dec("1"), PaymentDate: "yesterday"}, ErrValidation, "Invalid payment date"},
		{"unknown omc", AllocateRequest{BankID: bank.ID, OMC: "Nobody", Amount: dec("1")}, ErrValidation, "No outstanding S-Tax for this OMC"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Allocate(ctx, tc.req)
			assertKind(t, err, tc.kind, tc.msg)
		})
	}
	assert.EqualValues(t, 0, env.countTaxRecords(t))
}

func TestAllocateRejectsConcurrentRunForSameOMC(t *testing.T) {
	env := newTestEnv(t)
	svc := env.allocationService()
	bank := env.bank(t)
	env.taxOrder(t, "Zen", "A0001", "1", "100", day("2024-05-01"))

	release, ok := svc.inflight.acquire("Zen")
	require.True(t, ok)

	_, err := svc.Allocate(context.Background(), AllocateRequest{BankID: bank.ID, OMC: "Zen", Amount: dec("10")})
	assertKind(t, err, ErrConflict, "already in progress")

	release()
	_, err = svc.Allocate(context.Background(), AllocateRequest{BankID: bank.ID, OMC: "Zen", Amount: dec("10")})
	require.NoError(t, err)
}

func TestInflightGuardAllowsDifferentKeys(t *testing.T) {
	g := newInflight()
	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i, key := range []string{"a", "b"} {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			_, results[i] = g.acquire(key)
		}(i, key)
	}
	wg.Wait()
	assert.Equal(t, []bool{true, true}, results)

	_, ok := g.acquire("a")
	assert.False(t, ok)
}

func TestCacheRefreshRecomputesAfterConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.taxOrder(t, "Zen", "A0001", "1", "100", day("2024-05-01"))
	stale := env.reload(t, o.ID)

	id := o.ID
	for _, amt := range []string{"30", "20"} {
		require.NoError(t, env.taxes.Insert(ctx, &models.TaxRecord{
			Type: models.TaxRecordTypeSTax, Amount: dec(amt), OrderOID: &id, OMC: "Zen",
		}))
	}
	// Another writer already cached the first payment.
	ok, err := env.orders.UpdateTaxPayment(ctx, id, decimal.Zero, repositories.TaxPaymentUpdate{
		PaidAmount: dec("30"), Status: models.TaxPaymentPartial, PaidAt: env.clock.Now(),
	})
	require.NoError(t, err)
	require.True(t, ok)

	cache := &taxCache{orders: env.orders, taxes: env.taxes, log: env.log}
	state, err := cache.refresh(ctx, stale, env.clock.Now(), "", "")
	require.NoError(t, err)
	assertDec(t, "50", state.Paid)
	assertDec(t, "50", state.Remaining)
	assert.Equal(t, models.TaxPaymentPartial, state.Status)

	fresh := env.reload(t, id)
	assertDec(t, "50", fresh.TaxPaidAmount)
	assert.EqualValues(t, 2, env.countTaxRecords(t), "refresh never writes records")
}

func TestCacheStatusNeverMovesBackward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.taxOrder(t, "Zen", "A0001", "1", "100", day("2024-05-01"))

	ok, err := env.orders.UpdateTaxPayment(ctx, o.ID, decimal.Zero, repositories.TaxPaymentUpdate{
		PaidAmount: decimal.Zero, Status: models.TaxPaymentPaid, PaidAt: env.clock.Now(),
	})
	require.NoError(t, err)
	require.True(t, ok)

	cache := &taxCache{orders: env.orders, taxes: env.taxes, log: env.log}
	state, err := cache.refresh(ctx, env.reload(t, o.ID), env.clock.Now(), "", "")
	require.NoError(t, err)
	assert.Equal(t, models.TaxPaymentPaid, state.Status)
}

func TestOMCDebts(t *testing.T) {
	env := newTestEnv(t)
	svc := env.allocationService()
	ctx := context.Background()
	bank := env.bank(t)

	env.taxOrder(t, "Zen", "A0001", "1", "100", day("2024-05-01"))
	env.taxOrder(t, "Zen", "A0002", "1", "50", day("2024-05-02"))
	env.taxOrder(t, "Star Oil", "B0001", "2", "200", day("2024-05-03"))
	paid := env.taxOrder(t, "Kings", "C0001", "1", "10", day("2024-05-04"))
	_, err := env.taxService().PayOrder(ctx, PayOrderRequest{OrderID: paid.ID, Amount: dec("10")})
	require.NoError(t, err)

	debts, err := svc.OMCDebts(ctx, bank.ID)
	require.NoError(t, err)
	require.Len(t, debts, 2)
	assert.Equal(t, "Star Oil", debts[0].OMC)
	assertDec(t, "400", debts[0].Outstanding)
	assert.Equal(t, 1, debts[0].UnpaidOrders)
	assert.Equal(t, "Zen", debts[1].OMC)
	assertDec(t, "150", debts[1].Outstanding)
	assert.Equal(t, 2, debts[1].UnpaidOrders)

	_, err = svc.OMCDebts(ctx, 404)
	assertKind(t, err, ErrNotFound, "Bank account not found")
}
