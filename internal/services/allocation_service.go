package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/clock"
	"fuel-reconciliation-service/internal/metrics"
	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/money"
	"fuel-reconciliation-service/internal/reconcile"
	"fuel-reconciliation-service/internal/repositories"
)

// AllocationService applies bank payments to a counterparty's S-Tax debt.
type AllocationService struct {
	banks    repositories.BankRepository
	orders   repositories.OrderRepository
	taxes    repositories.TaxRepository
	cache    *taxCache
	inflight *inflight
	clock    clock.Clock
	metrics  *metrics.Metrics
	log      *zap.Logger
	currency string
}

func NewAllocationService(
	banks repositories.BankRepository,
	orders repositories.OrderRepository,
	taxes repositories.TaxRepository,
	clk clock.Clock,
	m *metrics.Metrics,
	log *zap.Logger,
	currency string,
) *AllocationService {
	log = log.Named("allocation.service")
	return &AllocationService{
		banks:    banks,
		orders:   orders,
		taxes:    taxes,
		cache:    &taxCache{orders: orders, taxes: taxes, log: log},
		inflight: newInflight(),
		clock:    clk,
		metrics:  m,
		log:      log,
		currency: currency,
	}
}

type OMCDebt struct {
	OMC          string          `json:"omc"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	UnpaidOrders int             `json:"unpaid_orders"`
}

// OMCDebts lists outstanding S-Tax per counterparty, largest first.
func (s *AllocationService) OMCDebts(ctx context.Context, bankID uint64) ([]OMCDebt, error) {
	if bankID == 0 {
		return nil, validationError("Invalid bank id")
	}
	if _, err := s.banks.GetByID(ctx, bankID); err != nil {
		return nil, lookupError(err, "Bank account not found", "failed to load bank account")
	}

	orders, err := s.orders.ListTaxEligible(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible orders: %w", err)
	}
	paid, err := s.taxes.PaidTotals(ctx, orderIDs(orders))
	if err != nil {
		s.log.Error("paid totals unavailable, showing zero", zap.Error(err))
		s.metrics.RecordAggregateFallback("omc_debts_paid")
		paid = map[uint64]decimal.Decimal{}
	}

	byOMC := make(map[string]*OMCDebt)
	for _, o := range orders {
		rem := reconcile.Remaining(reconcile.TaxDue(o), paid[o.ID])
		if !rem.IsPositive() {
			continue
		}
		name := o.OMC
		if name == "" {
			name = "—"
		}
		d, ok := byOMC[name]
		if !ok {
			d = &OMCDebt{OMC: name, Outstanding: decimal.Zero}
			byOMC[name] = d
		}
		d.Outstanding = d.Outstanding.Add(rem)
		d.UnpaidOrders++
	}

	debts := make([]OMCDebt, 0, len(byOMC))
	for _, d := range byOMC {
		d.Outstanding = d.Outstanding.Round(2)
		debts = append(debts, *d)
	}
	sort.Slice(debts, func(i, j int) bool {
		if !debts[i].Outstanding.Equal(debts[j].Outstanding) {
			return debts[i].Outstanding.GreaterThan(debts[j].Outstanding)
		}
		return debts[i].OMC < debts[j].OMC
	})
	return debts, nil
}

type AllocateRequest struct {
	BankID      uint64
	OMC         string
	Amount      decimal.Decimal
	Reference   string
	PaidBy      string
	PaymentDate string
}

type AllocationOutcome struct {
	OMC       string                       `json:"omc"`
	Amount    decimal.Decimal              `json:"amount"`
	Allocated []reconcile.AllocationResult `json:"allocated"`
}

// Allocate spreads one bank payment over the OMC's outstanding orders,
// oldest first. Each order is committed on its own; a failure part way
// leaves the earlier orders paid and returns them in the outcome alongside
// the error.
func (s *AllocationService) Allocate(ctx context.Context, req AllocateRequest) (*AllocationOutcome, error) {
	omc := strings.TrimSpace(req.OMC)
	amount := req.Amount.Round(2)

	if req.BankID == 0 {
		return nil, validationError("Invalid bank id")
	}
	if omc == "" {
		return nil, validationError("OMC is required")
	}
	if !amount.IsPositive() {
		return nil, validationError("Amount must be greater than 0")
	}

	now := s.clock.Now()
	paidAt, err := parsePaymentDate(req.PaymentDate, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.banks.GetByID(ctx, req.BankID); err != nil {
		return nil, lookupError(err, "Bank account not found", "failed to load bank account")
	}

	release, ok := s.inflight.acquire(omc)
	if !ok {
		s.metrics.RecordAllocation("conflict", 0)
		return nil, conflictError("An allocation for this OMC is already in progress")
	}
	defer release()

	steps, err := s.plan(ctx, omc, amount)
	if err != nil {
		s.metrics.RecordAllocation("rejected", 0)
		return nil, err
	}

	outcome := &AllocationOutcome{
		OMC:       omc,
		Amount:    amount,
		Allocated: make([]reconcile.AllocationResult, 0, len(steps)),
	}
	bankID := req.BankID
	for _, step := range steps {
		o := step.Order
		id := o.ID
		rec := &models.TaxRecord{
			Type:         models.TaxRecordTypeSTax,
			Amount:       step.Portion,
			PaymentDate:  paidAt,
			Reference:    optionalString(req.Reference),
			PaidBy:       optionalString(req.PaidBy),
			OMC:          omc,
			OrderCode:    o.OrderRef,
			OrderOID:     &id,
			SourceBankID: &bankID,
			SubmittedAt:  now,
		}
		if err := s.taxes.Insert(ctx, rec); err != nil {
			s.logPartial(outcome, err)
			s.metrics.RecordAllocation("failed", 0)
			return outcome, fmt.Errorf("failed to record tax payment for order %d: %w", o.ID, err)
		}
		s.metrics.RecordTaxRecord("bank")

		state, err := s.cache.refresh(ctx, o, paidAt, req.Reference, req.PaidBy)
		if err != nil {
			// The record is stored; report the planned state for it.
			outcome.Allocated = append(outcome.Allocated, reconcile.AllocationResult{
				OrderID:        o.ID,
				OrderCode:      o.OrderRef,
				Applied:        step.Portion,
				RemainingAfter: step.Remaining,
				Status:         reconcile.NextTaxPaymentStatus(o.TaxPaymentStatus, step.Remaining),
				PaidAt:         paidAt,
			})
			s.logPartial(outcome, err)
			s.metrics.RecordAllocation("failed", 0)
			return outcome, err
		}

		outcome.Allocated = append(outcome.Allocated, reconcile.AllocationResult{
			OrderID:        o.ID,
			OrderCode:      o.OrderRef,
			Applied:        step.Portion,
			RemainingAfter: state.Remaining,
			Status:         state.Status,
			PaidAt:         paidAt,
		})
	}

	s.metrics.RecordAllocation("success", amount.InexactFloat64())
	s.log.Info("bank payment allocated",
		zap.Uint64("bank_id", req.BankID),
		zap.String("omc", omc),
		zap.String("amount", amount.StringFixed(2)),
		zap.Int("orders", len(outcome.Allocated)))

	return outcome, nil
}

// plan reads the OMC's orders and paid totals and computes the steps. Read
// errors fail the allocation.
func (s *AllocationService) plan(ctx context.Context, omc string, amount decimal.Decimal) ([]reconcile.AllocationStep, error) {
	orders, err := s.orders.ListTaxEligible(ctx, omc)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible orders: %w", err)
	}
	paid, err := s.taxes.PaidTotals(ctx, orderIDs(orders))
	if err != nil {
		return nil, fmt.Errorf("failed to read paid totals: %w", err)
	}

	engine := reconcile.NewAllocationEngine()
	engine.SetData(orders, paid)

	steps, err := engine.Plan(amount)
	var exceeds *reconcile.ExceedsOutstandingError
	switch {
	case err == nil:
		return steps, nil
	case errors.Is(err, reconcile.ErrNothingOutstanding):
		return nil, validationError("No outstanding S-Tax for this OMC")
	case errors.Is(err, reconcile.ErrNonPositiveAmount):
		return nil, validationError("Amount must be greater than 0")
	case errors.As(err, &exceeds):
		return nil, validationError("Amount exceeds OMC outstanding (%s)", money.Format(exceeds.Outstanding, s.currency))
	default:
		return nil, err
	}
}

func (s *AllocationService) logPartial(outcome *AllocationOutcome, err error) {
	applied := decimal.Zero
	for _, a := range outcome.Allocated {
		applied = applied.Add(a.Applied)
	}
	s.log.Error("allocation stopped part way",
		zap.String("omc", outcome.OMC),
		zap.Int("orders_committed", len(outcome.Allocated)),
		zap.String("applied", applied.StringFixed(2)),
		zap.Error(err))
}

func orderIDs(orders []*models.Order) []uint64 {
	ids := make([]uint64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}
