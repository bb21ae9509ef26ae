package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/clock"
	"fuel-reconciliation-service/internal/metrics"
	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/money"
	"fuel-reconciliation-service/internal/reconcile"
	"fuel-reconciliation-service/internal/repositories"
)

type TaxService struct {
	orders   repositories.OrderRepository
	taxes    repositories.TaxRepository
	cache    *taxCache
	clock    clock.Clock
	metrics  *metrics.Metrics
	log      *zap.Logger
	currency string
}

func NewTaxService(
	orders repositories.OrderRepository,
	taxes repositories.TaxRepository,
	clk clock.Clock,
	m *metrics.Metrics,
	log *zap.Logger,
	currency string,
) *TaxService {
	log = log.Named("tax.service")
	return &TaxService{
		orders:   orders,
		taxes:    taxes,
		cache:    &taxCache{orders: orders, taxes: taxes, log: log},
		clock:    clk,
		metrics:  m,
		log:      log,
		currency: currency,
	}
}

// PaidTotal is the sum of tax records for the order. Callers decide whether
// an error should be shown as zero.
func (s *TaxService) PaidTotal(ctx context.Context, orderID uint64) (decimal.Decimal, error) {
	return s.taxes.PaidTotal(ctx, orderID)
}

type PayOrderRequest struct {
	OrderID     uint64
	Amount      decimal.Decimal
	Reference   string
	PaidBy      string
	PaymentDate string
}

type PayOrderResult struct {
	OrderID   uint64          `json:"order_id"`
	OrderCode string          `json:"order_code"`
	Due       decimal.Decimal `json:"due"`
	Paid      decimal.Decimal `json:"paid"`
	Status    string          `json:"status"`
	PaidAt    time.Time       `json:"paid_at"`
}

// PayOrder settles one order in full. Overpayment is accepted.
func (s *TaxService) PayOrder(ctx context.Context, req PayOrderRequest) (*PayOrderResult, error) {
	if req.OrderID == 0 {
		return nil, validationError("Invalid order id")
	}
	order, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, lookupError(err, "Order not found", "failed to load order")
	}
	if !reconcile.IsTaxEligible(order) {
		return nil, validationError("Order has no S-Tax to pay")
	}
	due := reconcile.TaxDue(order)
	already, err := s.taxes.PaidTotal(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum tax payments: %w", err)
	}
	if taxSettled(order, due, already) {
		return nil, validationError("S-Tax already recorded as paid")
	}

	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, validationError("Amount must be greater than 0")
	}
	if amount.LessThan(due) {
		return nil, validationError("Amount must cover S-Tax due (%s)", money.Format(due, s.currency))
	}

	now := s.clock.Now()
	paidAt, err := parsePaymentDate(req.PaymentDate, now)
	if err != nil {
		return nil, err
	}

	id := order.ID
	rec := &models.TaxRecord{
		Type:        models.TaxRecordTypeSTax,
		Amount:      amount,
		PaymentDate: paidAt,
		Reference:   optionalString(req.Reference),
		PaidBy:      optionalString(req.PaidBy),
		OMC:         order.OMC,
		OrderCode:   order.OrderRef,
		OrderOID:    &id,
		SubmittedAt: now,
	}
	if err := s.taxes.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record tax payment: %w", err)
	}
	s.metrics.RecordTaxRecord("order")

	state, err := s.cache.refresh(ctx, order, paidAt, req.Reference, req.PaidBy)
	if err != nil {
		return nil, err
	}

	s.log.Info("order tax paid",
		zap.Uint64("order_id", order.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("status", state.Status))

	return &PayOrderResult{
		OrderID:   order.ID,
		OrderCode: order.OrderRef,
		Due:       due,
		Paid:      state.Paid,
		Status:    state.Status,
		PaidAt:    paidAt,
	}, nil
}

type AddTaxRequest struct {
	Type        string
	Amount      decimal.Decimal
	PaymentDate string
	Reference   string
	PaidBy      string
}

// AddTaxRecord appends a free-standing tax payment not tied to an order.
func (s *TaxService) AddTaxRecord(ctx context.Context, req AddTaxRequest) (*models.TaxRecord, error) {
	taxType := strings.TrimSpace(req.Type)
	if taxType == "" {
		return nil, validationError("Type is required")
	}
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, validationError("Amount must be greater than 0")
	}

	now := s.clock.Now()
	paidAt, err := parsePaymentDate(req.PaymentDate, now)
	if err != nil {
		return nil, err
	}

	rec := &models.TaxRecord{
		Type:        taxType,
		Amount:      amount,
		PaymentDate: paidAt,
		Reference:   optionalString(req.Reference),
		PaidBy:      optionalString(req.PaidBy),
		SubmittedAt: now,
	}
	if err := s.taxes.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record tax payment: %w", err)
	}
	s.metrics.RecordTaxRecord("manual")
	return rec, nil
}

// DashboardFilter holds the raw query values for the paid table. Values that
// cannot be read are ignored.
type DashboardFilter struct {
	OMC       string `json:"omc"`
	PaidBy    string `json:"paid_by"`
	DateFrom  string `json:"date_from"`
	DateTo    string `json:"date_to"`
	AmountMin string `json:"amount_min"`
	AmountMax string `json:"amount_max"`
}

type UnpaidRow struct {
	OrderID     uint64          `json:"order_id"`
	OrderCode   string          `json:"order_code"`
	OMC         string          `json:"omc"`
	Quantity    decimal.Decimal `json:"quantity"`
	RatePerUnit decimal.Decimal `json:"rate_per_unit"`
	Due         decimal.Decimal `json:"due"`
	Paid        decimal.Decimal `json:"paid"`
	Remaining   decimal.Decimal `json:"remaining"`
	Status      string          `json:"status"`
	OrderedAt   time.Time       `json:"ordered_at"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
}

type TaxDashboard struct {
	Unpaid         []UnpaidRow             `json:"unpaid"`
	TotalDue       decimal.Decimal         `json:"total_due"`
	TotalRemaining decimal.Decimal         `json:"total_remaining"`
	Paid           []models.TaxRecord      `json:"paid"`
	TotalPaid      decimal.Decimal         `json:"total_paid"`
	OMCTotals      []repositories.OMCTotal `json:"omc_totals"`
	Trend          []reconcile.MonthBucket `json:"trend"`
	Filters        DashboardFilter         `json:"filters"`
}

func (s *TaxService) Dashboard(ctx context.Context, filter DashboardFilter) (*TaxDashboard, error) {
	eligible, err := s.orders.ListTaxEligibleNewestFirst(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tax orders: %w", err)
	}

	paid, err := s.taxes.PaidTotals(ctx, orderIDs(eligible))
	if err != nil {
		s.log.Error("paid totals unavailable, showing zero", zap.Error(err))
		s.metrics.RecordAggregateFallback("tax_dashboard_paid")
		paid = map[uint64]decimal.Decimal{}
	}

	dash := &TaxDashboard{
		Unpaid:         make([]UnpaidRow, 0, len(eligible)),
		TotalDue:       decimal.Zero,
		TotalRemaining: decimal.Zero,
		TotalPaid:      decimal.Zero,
		Filters:        filter,
	}
	for _, o := range eligible {
		due := reconcile.TaxDue(o)
		if taxSettled(o, due, paid[o.ID]) {
			continue
		}
		status := "pending"
		if paid[o.ID].IsPositive() {
			status = models.TaxPaymentPartial
		}
		row := UnpaidRow{
			OrderID:     o.ID,
			OrderCode:   o.OrderRef,
			OMC:         o.OMC,
			Quantity:    o.Quantity,
			RatePerUnit: reconcile.TaxRatePerUnit(o),
			Due:         due,
			Paid:        paid[o.ID],
			Remaining:   reconcile.Remaining(due, paid[o.ID]),
			Status:      status,
			OrderedAt:   o.OrderedAt,
			DueDate:     o.DueDate,
		}
		dash.Unpaid = append(dash.Unpaid, row)
		dash.TotalDue = dash.TotalDue.Add(due)
		dash.TotalRemaining = dash.TotalRemaining.Add(row.Remaining)
	}

	records, err := s.taxes.List(ctx, recordFilter(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to list tax payments: %w", err)
	}
	dash.Paid = records
	for _, r := range records {
		dash.TotalPaid = dash.TotalPaid.Add(r.Amount)
	}
	dash.TotalPaid = dash.TotalPaid.Round(2)

	dash.OMCTotals, err = s.taxes.TotalsByOMC(ctx)
	if err != nil {
		s.log.Error("OMC totals unavailable, showing none", zap.Error(err))
		s.metrics.RecordAggregateFallback("tax_dashboard_omc_totals")
		dash.OMCTotals = []repositories.OMCTotal{}
	}

	all, err := s.taxes.List(ctx, repositories.TaxRecordFilter{})
	if err != nil {
		s.log.Error("tax trend unavailable, showing zero", zap.Error(err))
		s.metrics.RecordAggregateFallback("tax_dashboard_trend")
		all = nil
	}
	dash.Trend = reconcile.MonthlyTrend(all)

	return dash, nil
}

// taxSettled decides from the record sum. The cached status only counts for
// orders that owe nothing.
func taxSettled(o *models.Order, due, paid decimal.Decimal) bool {
	if due.IsPositive() {
		return reconcile.Remaining(due, paid).IsZero()
	}
	return o.TaxPaymentStatus == models.TaxPaymentPaid
}

// filterDateLayouts are accepted for the paid table date range.
var filterDateLayouts = []string{"2006-01-02", "2006/01/02", "02-01-2006"}

func parseFilterDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range filterDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

func parseFilterAmount(s string) *decimal.Decimal {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	d, ok := money.ParseString(s)
	if !ok {
		return nil
	}
	return &d
}

func recordFilter(f DashboardFilter) repositories.TaxRecordFilter {
	return repositories.TaxRecordFilter{
		OMC:       strings.TrimSpace(f.OMC),
		PaidBy:    strings.TrimSpace(f.PaidBy),
		From:      parseFilterDate(f.DateFrom),
		To:        parseFilterDate(f.DateTo),
		MinAmount: parseFilterAmount(f.AmountMin),
		MaxAmount: parseFilterAmount(f.AmountMax),
	}
}
