package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/reconcile"
	"fuel-reconciliation-service/internal/repositories"
)

const cacheUpdateAttempts = 3

// taxCache keeps the cached tax fields on an order in line with its tax
// records. Records are never written here.
type taxCache struct {
	orders repositories.OrderRepository
	taxes  repositories.TaxRepository
	log    *zap.Logger
}

type cacheState struct {
	Paid      decimal.Decimal
	Remaining decimal.Decimal
	Status    string
}

// refresh recomputes the paid total and writes it with a compare-and-set on
// the cached amount. On conflict it reloads the order and tries again.
func (c *taxCache) refresh(ctx context.Context, order *models.Order, paidAt time.Time, reference, paidBy string) (cacheState, error) {
	due := reconcile.TaxDue(order)
	expected := order.TaxPaidAmount
	current := order.TaxPaymentStatus
	ref := keepOrReplace(order.TaxReference, reference)
	by := keepOrReplace(order.TaxPaidBy, paidBy)

	for attempt := 1; attempt <= cacheUpdateAttempts; attempt++ {
		paid, err := c.taxes.PaidTotal(ctx, order.ID)
		if err != nil {
			return cacheState{}, fmt.Errorf("failed to read paid total for order %d: %w", order.ID, err)
		}
		state := cacheState{Paid: paid, Remaining: reconcile.Remaining(due, paid)}
		state.Status = reconcile.NextTaxPaymentStatus(current, state.Remaining)

		ok, err := c.orders.UpdateTaxPayment(ctx, order.ID, expected, repositories.TaxPaymentUpdate{
			PaidAmount: paid,
			Status:     state.Status,
			PaidAt:     paidAt,
			Reference:  ref,
			PaidBy:     by,
		})
		if err != nil {
			return cacheState{}, fmt.Errorf("failed to update tax cache for order %d: %w", order.ID, err)
		}
		if ok {
			return state, nil
		}

		c.log.Warn("tax cache changed concurrently, recomputing",
			zap.Uint64("order_id", order.ID),
			zap.Int("attempt", attempt))

		fresh, err := c.orders.GetByID(ctx, order.ID)
		if err != nil {
			return cacheState{}, fmt.Errorf("failed to reload order %d: %w", order.ID, err)
		}
		expected = fresh.TaxPaidAmount
		current = fresh.TaxPaymentStatus
	}
	return cacheState{}, conflictError("Order %d was updated concurrently, try again", order.ID)
}

func keepOrReplace(existing *string, value string) *string {
	if v := strings.TrimSpace(value); v != "" {
		return &v
	}
	return existing
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// parsePaymentDate reads YYYY-MM-DD; blank means now.
func parsePaymentDate(s string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return now, nil
	}
	t, err := reconcile.ParseDate(s)
	if err != nil {
		return time.Time{}, validationError("Invalid payment date")
	}
	return t, nil
}
