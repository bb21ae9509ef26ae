package repositories

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"fuel-reconciliation-service/internal/database"
	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/reconcile"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "=", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(s), Valid: true}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func strPtr(s string) *string { return &s }

func u64(v uint64) *uint64 { return &v }

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s got %s", want, got)
}

func createOrder(t *testing.T, repo OrderRepository, o *models.Order) *models.Order {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), o))
	return o
}

func TestPaidTotalMatchesBothReferenceForms(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	orders := NewOrderRepository(db)
	taxes := NewTaxRepository(db)

	o := createOrder(t, orders, &models.Order{OMC: "X", OrderType: "s_tax", Quantity: dec("1000"), STax: nullDec("0.5"), OrderedAt: day("2024-01-01")})
	other := createOrder(t, orders, &models.Order{OMC: "X", OrderType: "s_tax", Quantity: dec("1"), OrderedAt: day("2024-01-01")})

	records := []models.TaxRecord{
		{Type: "S-Tax", Amount: dec("100"), OrderOID: u64(o.ID)},
		{Type: "s_tax", Amount: dec("50.25"), OrderKey: strPtr(o.Key())},
		{Type: "tax", Amount: dec("10"), OrderOID: u64(o.ID)},
		{Type: "VAT", Amount: dec("999"), OrderOID: u64(o.ID)},
		{Type: "S-Tax", Amount: dec("7"), OrderOID: u64(other.ID)},
	}
	for i := range records {
		records[i].PaymentDate = day("2024-02-01")
		require.NoError(t, taxes.Insert(ctx, &records[i]))
	}

	total, err := taxes.PaidTotal(ctx, o.ID)
	require.NoError(t, err)
	assertDec(t, "160.25", total)

	none, err := taxes.PaidTotal(ctx, 9999)
	require.NoError(t, err)
	assert.True(t, none.IsZero())

	totals, err := taxes.PaidTotals(ctx, []uint64{o.ID, other.ID})
	require.NoError(t, err)
	assertDec(t, "160.25", totals[o.ID])
	assertDec(t, "7", totals[other.ID])
}

func TestPaidTotalIsOrderInsensitive(t *testing.T) {
	amounts := []string{"0.10", "0.20", "33.33", "66.67", "100.01"}

	sums := make([]decimal.Decimal, 0, 2)
	for _, reversed := range []bool{false, true} {
		t.Run(fmt.Sprintf("reversed=%v", reversed), func(t *testing.T) {
			ctx := context.Background()
			taxes := NewTaxRepository(setupTestDB(t))

			for i := range amounts {
				a := amounts[i]
				if reversed {
					a = amounts[len(amounts)-1-i]
				}
				require.NoError(t, taxes.Insert(ctx, &models.TaxRecord{Type: "S-Tax", Amount: dec(a), OrderOID: u64(1), PaymentDate: day("2024-01-01")}))
			}

			first, err := taxes.PaidTotal(ctx, 1)
			require.NoError(t, err)
			again, err := taxes.PaidTotal(ctx, 1)
			require.NoError(t, err)
			assert.True(t, first.Equal(again))
			sums = append(sums, first)
		})
	}

	require.Len(t, sums, 2)
	assertDec(t, "200.31", sums[0])
	assert.True(t, sums[0].Equal(sums[1]))
}

func TestTaxRecordListFilters(t *testing.T) {
	ctx := context.Background()
	taxes := NewTaxRepository(setupTestDB(t))

	bank := uint64(4)
	for _, rec := range []models.TaxRecord{
		{Type: "S-Tax", Amount: dec("100"), OMC: "Alpha", PaidBy: strPtr("John Mensah"), PaymentDate: day("2024-03-01")},
		{Type: "S-Tax", Amount: dec("250"), OMC: "Alpha", PaidBy: strPtr("Ama"), PaymentDate: day("2024-03-10").Add(20 * time.Hour), SourceBankID: &bank},
		{Type: "S-Tax", Amount: dec("75"), OMC: "Beta", PaidBy: strPtr("JOHNNY"), PaymentDate: day("2024-03-11")},
		{Type: "levy", Amount: dec("500"), OMC: "Alpha", PaymentDate: day("2024-03-05")},
	} {
		rec := rec
		require.NoError(t, taxes.Insert(ctx, &rec))
	}

	all, err := taxes.List(ctx, TaxRecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assertDec(t, "75", all[0].Amount)

	byPayer, err := taxes.List(ctx, TaxRecordFilter{PaidBy: "john"})
	require.NoError(t, err)
	assert.Len(t, byPayer, 2)

	to := day("2024-03-10")
	byDate, err := taxes.List(ctx, TaxRecordFilter{To: &to})
	require.NoError(t, err)
	assert.Len(t, byDate, 2, "end date includes the whole day")

	lo, hi := dec("80"), dec("250")
	byAmount, err := taxes.List(ctx, TaxRecordFilter{OMC: "Alpha", MinAmount: &lo, MaxAmount: &hi})
	require.NoError(t, err)
	assert.Len(t, byAmount, 2)

	byBank, err := taxes.List(ctx, TaxRecordFilter{SourceBankID: &bank})
	require.NoError(t, err)
	require.Len(t, byBank, 1)
	assertDec(t, "250", byBank[0].Amount)

	totals, err := taxes.TotalsByOMC(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "Alpha", totals[0].OMC)
	assertDec(t, "350", totals[0].Total)
	assert.Equal(t, "Beta", totals[1].OMC)
}

func TestListTaxEligible(t *testing.T) {
	ctx := context.Background()
	orders := NewOrderRepository(setupTestDB(t))

	late := createOrder(t, orders, &models.Order{OMC: "X", OrderType: "s_tax", Quantity: dec("1"), OrderedAt: day("2024-01-05")})
	legacy := createOrder(t, orders, &models.Order{OMC: "X", Quantity: dec("1"), STaxAlt: nullDec("0.2"), OrderedAt: day("2024-01-03")})
	early := createOrder(t, orders, &models.Order{OMC: "X", OrderType: "combo", Quantity: dec("1"), OrderedAt: day("2024-01-01")})
	createOrder(t, orders, &models.Order{OMC: "X", OrderType: "s_bdc", Quantity: dec("1"), OrderedAt: day("2024-01-02")})
	createOrder(t, orders, &models.Order{OMC: "Y", OrderType: "s_tax", Quantity: dec("1"), OrderedAt: day("2024-01-02")})

	got, err := orders.ListTaxEligible(ctx, "X")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []uint64{early.ID, legacy.ID, late.ID}, []uint64{got[0].ID, got[1].ID, got[2].ID})

	all, err := orders.ListTaxEligible(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
	for _, o := range all {
		assert.True(t, reconcile.IsTaxEligible(o))
	}
}

func TestUpdateTaxPaymentCompareAndSet(t *testing.T) {
	ctx := context.Background()
	orders := NewOrderRepository(setupTestDB(t))
	o := createOrder(t, orders, &models.Order{OMC: "X", OrderType: "s_tax", Quantity: dec("1000"), STax: nullDec("0.3"), OrderedAt: day("2024-01-01")})

	upd := TaxPaymentUpdate{PaidAmount: dec("100"), Status: models.TaxPaymentPartial, PaidAt: day("2024-02-01"), Reference: strPtr("R1")}
	ok, err := orders.UpdateTaxPayment(ctx, o.ID, decimal.Zero, upd)
	require.NoError(t, err)
	assert.True(t, ok)

	// stale expectation loses
	ok, err = orders.UpdateTaxPayment(ctx, o.ID, decimal.Zero, upd)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assertDec(t, "100", got.TaxPaidAmount)
	assert.Equal(t, models.TaxPaymentPartial, got.TaxPaymentStatus)
	require.NotNil(t, got.TaxReference)
	assert.Equal(t, "R1", *got.TaxReference)

	_, err = orders.GetByID(ctx, 424242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListApprovedWindowAndProducts(t *testing.T) {
	ctx := context.Background()
	orders := NewOrderRepository(setupTestDB(t))

	createOrder(t, orders, &models.Order{Status: models.OrderStatusApproved, Product: "AGO", Quantity: dec("1"), OrderedAt: day("2024-02-01")})
	createOrder(t, orders, &models.Order{Status: models.OrderStatusApproved, Product: "PMS", Quantity: dec("1"), OrderedAt: day("2024-02-10").Add(23 * time.Hour)})
	createOrder(t, orders, &models.Order{Status: models.OrderStatusApproved, Product: "AGO", Quantity: dec("1"), OrderedAt: day("2024-02-11")})
	createOrder(t, orders, &models.Order{Status: models.OrderStatusPending, Product: "LPG", Quantity: dec("1"), OrderedAt: day("2024-02-05")})

	w, err := reconcile.ResolveWindow("custom", "2024-02-01", "2024-02-10", day("2024-03-01"))
	require.NoError(t, err)

	got, err := orders.ListApproved(ctx, ApprovedFilter{Window: w})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	ago, err := orders.ListApproved(ctx, ApprovedFilter{Product: "AGO"})
	require.NoError(t, err)
	assert.Len(t, ago, 2)

	products, err := orders.DistinctProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AGO", "LPG", "PMS"}, products)
}

func TestConfirmedAndEmbeddedTotals(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	orders := NewOrderRepository(db)
	payments := NewPaymentRepository(db)

	o := createOrder(t, orders, &models.Order{ClientID: "c1", Quantity: dec("1"), OrderedAt: day("2024-01-01")})

	for _, p := range []models.Payment{
		{OrderOID: u64(o.ID), ClientID: "c1", Amount: dec("100"), Status: models.PaymentConfirmed},
		{OrderKey: strPtr(o.Key()), ClientID: "c1", Amount: dec("50"), Status: "Confirmed"},
		{OrderOID: u64(o.ID), ClientID: "c1", Amount: dec("999"), Status: models.PaymentPending},
		{OrderOID: u64(o.ID), ClientID: "c1", Amount: dec("999"), Status: models.PaymentRejected},
		{OrderOID: u64(o.ID), ClientID: "c2", Amount: dec("5"), Status: models.PaymentConfirmed},
	} {
		p := p
		p.Date = day("2024-01-02")
		require.NoError(t, payments.Insert(ctx, &p))
	}
	require.NoError(t, db.Create(&models.EmbeddedPayment{OrderID: o.ID, PaymentType: "Cash", Amount: dec("20")}).Error)
	require.NoError(t, db.Create(&models.EmbeddedPayment{OrderID: o.ID, PaymentType: "Credit", Amount: dec("5.5")}).Error)

	confirmed, err := payments.ConfirmedTotals(ctx, []uint64{o.ID}, "c1")
	require.NoError(t, err)
	assertDec(t, "150", confirmed[o.ID])

	anyClient, err := payments.ConfirmedTotals(ctx, []uint64{o.ID}, "")
	require.NoError(t, err)
	assertDec(t, "155", anyClient[o.ID])

	embedded, err := payments.EmbeddedTotals(ctx, []uint64{o.ID})
	require.NoError(t, err)
	assertDec(t, "25.5", embedded[o.ID])
}

func TestPaymentStatusAndBankReceipts(t *testing.T) {
	ctx := context.Background()
	payments := NewPaymentRepository(setupTestDB(t))

	p := &models.Payment{BankName: "GCB", AccountLast4: "1234", Amount: dec("300"), Status: models.PaymentPending, Date: day("2024-04-02")}
	require.NoError(t, payments.Insert(ctx, p))
	require.NoError(t, payments.Insert(ctx, &models.Payment{BankName: "GCB", AccountLast4: "9999", Amount: dec("1"), Status: models.PaymentConfirmed, Date: day("2024-04-02")}))

	ok, err := payments.UpdateStatus(ctx, p.ID, models.PaymentPending, models.PaymentConfirmed)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = payments.UpdateStatus(ctx, p.ID, models.PaymentPending, models.PaymentConfirmed)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := payments.ListConfirmedForBank(ctx, BankReceiptFilter{BankName: "GCB", AccountLast4: "1234"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	from, to := day("2024-04-01"), day("2024-04-02")
	got, err = payments.ListConfirmedForBank(ctx, BankReceiptFilter{BankName: "GCB", AccountLast4: "1234", From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	from, to = day("2024-04-03"), day("2024-04-05")
	got, err = payments.ListConfirmedForBank(ctx, BankReceiptFilter{BankName: "GCB", AccountLast4: "1234", From: &from, To: &to})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSharedTaxUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewSharedTaxRepository(setupTestDB(t))

	missing, err := repo.GetByProduct(ctx, "AGO")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.Upsert(ctx, &models.SharedTaxRate{Product: "AGO", TotalTax: dec("1"), GRATax: dec("0.4"), NPALifeTax: nullDec("0.5"), NPAComponentTax: nullDec("0.2")}))
	require.NoError(t, repo.Upsert(ctx, &models.SharedTaxRate{Product: "AGO", TotalTax: dec("2"), GRATax: dec("0.5"), NPALifeTax: nullDec("0.6"), NPAComponentTax: nullDec("0.3")}))

	got, err := repo.GetByProduct(ctx, "AGO")
	require.NoError(t, err)
	require.NotNil(t, got)
	assertDec(t, "2", got.TotalTax)
	assertDec(t, "0.3", got.NPAComponentTax.Decimal)
}

func TestShareLinkRevokeOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewShareLinkRepository(setupTestDB(t))

	link := &models.ShareLink{Token: "tok", BDCName: "BDC One", PassHash: "x", CreatedAt: day("2024-01-01"), ExpiresAt: day("2024-01-08")}
	require.NoError(t, repo.Create(ctx, link, &models.ShareLinkAudit{Type: models.AuditCreate, At: day("2024-01-01")}))

	ok, err := repo.Revoke(ctx, link.ID, day("2024-01-02"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Revoke(ctx, link.ID, day("2024-01-03"))
	require.NoError(t, err)
	assert.False(t, ok)

	audits, err := repo.ListAuditEntries(ctx, link.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, models.AuditCreate, audits[0].Type)

	_, err = repo.GetByToken(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
