package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fuel-reconciliation-service/internal/clock"
	"fuel-reconciliation-service/internal/database"
	"fuel-reconciliation-service/internal/metrics"
	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/repositories"
)

type testEnv struct {
	db        *gorm.DB
	orders    repositories.OrderRepository
	taxes     repositories.TaxRepository
	banks     repositories.BankRepository
	payments  repositories.PaymentRepository
	sharedTax repositories.SharedTaxRepository
	links     repositories.ShareLinkRepository
	clock     *clock.FakeClock
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "=", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return &testEnv{
		db:        db,
		orders:    repositories.NewOrderRepository(db),
		taxes:     repositories.NewTaxRepository(db),
		banks:     repositories.NewBankRepository(db),
		payments:  repositories.NewPaymentRepository(db),
		sharedTax: repositories.NewSharedTaxRepository(db),
		links:     repositories.NewShareLinkRepository(db),
		clock:     clock.NewFakeClock(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)),
		metrics:   metrics.New(prometheus.NewRegistry()),
		log:       zap.NewNop(),
	}
}

func (e *testEnv) taxService() *TaxService {
	return NewTaxService(e.orders, e.taxes, e.clock, e.metrics, e.log, "GHS")
}

func (e *testEnv) allocationService() *AllocationService {
	return NewAllocationService(e.banks, e.orders, e.taxes, e.clock, e.metrics, e.log, "GHS")
}

// taxOrder stores an approved S-Tax order owing rate × qty.
func (e *testEnv) taxOrder(t *testing.T, omc, ref, rate, qty string, orderedAt time.Time) *models.Order {
	t.Helper()
	o := &models.Order{
		OrderRef:  ref,
		ClientID:  "client-1",
		OMC:       omc,
		Product:   "AGO",
		Quantity:  dec(qty),
		STax:      nullDec(rate),
		OrderType: models.OrderTypeTax,
		Status:    models.OrderStatusApproved,
		OrderedAt: orderedAt,
	}
	require.NoError(t, e.orders.Create(context.Background(), o))
	return o
}

func (e *testEnv) bank(t *testing.T) *models.BankAccount {
	t.Helper()
	b := &models.BankAccount{BankName: "GCB", AccountName: "Ops", AccountNumber: "1002003004"}
	require.NoError(t, e.banks.Create(context.Background(), b))
	return b
}

func (e *testEnv) countTaxRecords(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.TaxRecord{}).Count(&n).Error)
	return n
}

func (e *testEnv) reload(t *testing.T, id uint64) *models.Order {
	t.Helper()
	o, err := e.orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return o
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

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s got %s", want, got)
}

func assertKind(t *testing.T, err error, kind error, msg string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "want kind %v, got %v", kind, err)
	if msg != "" {
		assert.Contains(t, err.Error(), msg)
	}
}
