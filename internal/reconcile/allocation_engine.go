package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fuel-reconciliation-service/internal/models"
)

var (
	ErrNonPositiveAmount  = errors.New("amount must be greater than 0")
	ErrNothingOutstanding = errors.New("no outstanding S-Tax for this OMC")
)

// ExceedsOutstandingError is returned when a payment is larger than what the
// counterparty owes across all of its orders.
type ExceedsOutstandingError struct {
	Amount      decimal.Decimal
	Outstanding decimal.Decimal
}

func (e *ExceedsOutstandingError) Error() string {
	return fmt.Sprintf("amount %s exceeds OMC outstanding %s", e.Amount.StringFixed(2), e.Outstanding.StringFixed(2))
}

// Outstanding is one eligible order together with its recomputed balance.
type Outstanding struct {
	Order     *models.Order
	Due       decimal.Decimal
	Paid      decimal.Decimal
	Remaining decimal.Decimal
}

// AllocationStep is the planned portion of a payment for one order.
type AllocationStep struct {
	Order     *models.Order
	Portion   decimal.Decimal
	Remaining decimal.Decimal
}

type AllocationEngine struct {
	orders []*models.Order
	paid   map[uint64]decimal.Decimal
}

func NewAllocationEngine() *AllocationEngine {
	return &AllocationEngine{}
}

// SetData loads the counterparty's orders and the paid total of each one.
func (e *AllocationEngine) SetData(orders []*models.Order, paid map[uint64]decimal.Decimal) {
	e.orders = orders
	e.paid = paid
}

// Outstanding returns eligible orders with a positive balance, oldest first,
// plus their summed balance.
func (e *AllocationEngine) Outstanding() ([]Outstanding, decimal.Decimal) {
	orders := make([]*models.Order, 0, len(e.orders))
	for _, o := range e.orders {
		if IsTaxEligible(o) {
			orders = append(orders, o)
		}
	}
	SortOldestFirst(orders)

	var out []Outstanding
	total := decimal.Zero
	for _, o := range orders {
		due := TaxDue(o)
		paid := e.paid[o.ID]
		rem := Remaining(due, paid)
		if !rem.IsPositive() {
			continue
		}
		out = append(out, Outstanding{Order: o, Due: due, Paid: paid, Remaining: rem})
		total = total.Add(rem)
	}
	return out, total.Round(2)
}

// Plan splits amount greedily across outstanding orders, oldest first. It is
// all-or-nothing: an amount above the total outstanding yields no steps.
func (e *AllocationEngine) Plan(amount decimal.Decimal) ([]AllocationStep, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	outstanding, total := e.Outstanding()
	if !total.IsPositive() {
		return nil, ErrNothingOutstanding
	}
	if amount.GreaterThan(total) {
		return nil, &ExceedsOutstandingError{Amount: amount, Outstanding: total}
	}

	left := amount
	steps := make([]AllocationStep, 0, len(outstanding))
	for _, o := range outstanding {
		if !left.IsPositive() {
			break
		}
		portion := decimal.Min(left, o.Remaining)
		steps = append(steps, AllocationStep{
			Order:     o.Order,
			Portion:   portion,
			Remaining: o.Remaining.Sub(portion),
		})
		left = left.Sub(portion)
	}
	return steps, nil
}

// SortOldestFirst orders by ordered_at, breaking ties on id.
func SortOldestFirst(orders []*models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i].OrderedAt, orders[j].OrderedAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return orders[i].ID < orders[j].ID
	})
}

// AllocationResult reports what a committed step did to an order.
type AllocationResult struct {
	OrderID        uint64          `json:"order_id"`
	OrderCode      string          `json:"order_code"`
	Applied        decimal.Decimal `json:"applied"`
	RemainingAfter decimal.Decimal `json:"remaining_after"`
	Status         string          `json:"status"`
	PaidAt         time.Time       `json:"paid_at"`
}
