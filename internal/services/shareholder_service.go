package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fuel-reconciliation-service/internal/clock"
	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/money"
	"fuel-reconciliation-service/internal/reconcile"
	"fuel-reconciliation-service/internal/repositories"
)

type ShareholderService struct {
	orders       repositories.OrderRepository
	sharedTax    repositories.SharedTaxRepository
	shareholders []reconcile.Shareholder
	clock        clock.Clock
	log          *zap.Logger
}

func NewShareholderService(
	orders repositories.OrderRepository,
	sharedTax repositories.SharedTaxRepository,
	shareholders []reconcile.Shareholder,
	clk clock.Clock,
	log *zap.Logger,
) *ShareholderService {
	return &ShareholderService{
		orders:       orders,
		sharedTax:    sharedTax,
		shareholders: shareholders,
		clock:        clk,
		log:          log.Named("shareholder.service"),
	}
}

// PeriodQuery is a named reporting window: all, today, week, month or custom.
type PeriodQuery struct {
	Period string
	Start  string
	End    string
}

type ContributionReport struct {
	Window reconcile.Window `json:"window"`
	reconcile.ContributionSummary
}

func (s *ShareholderService) Contributions(ctx context.Context, q PeriodQuery) (*ContributionReport, error) {
	window, orders, err := s.approvedIn(ctx, q)
	if err != nil {
		return nil, err
	}
	return &ContributionReport{
		Window:              window,
		ContributionSummary: reconcile.Contributions(orders, s.shareholders),
	}, nil
}

type VolumeReport struct {
	Window  reconcile.Window              `json:"window"`
	Volumes []reconcile.ShareholderVolume `json:"volumes"`
}

func (s *ShareholderService) Volumes(ctx context.Context, q PeriodQuery) (*VolumeReport, error) {
	window, orders, err := s.approvedIn(ctx, q)
	if err != nil {
		return nil, err
	}
	return &VolumeReport{Window: window, Volumes: reconcile.Volumes(orders, s.shareholders)}, nil
}

func (s *ShareholderService) approvedIn(ctx context.Context, q PeriodQuery) (reconcile.Window, []*models.Order, error) {
	window, err := reconcile.ResolveWindow(q.Period, q.Start, q.End, s.clock.Now())
	if err != nil {
		return reconcile.Window{}, nil, validationError("%s", err.Error())
	}
	orders, err := s.orders.ListApproved(ctx, repositories.ApprovedFilter{Window: window})
	if err != nil {
		return reconcile.Window{}, nil, fmt.Errorf("failed to list approved orders: %w", err)
	}
	return window, orders, nil
}

// TaxQuery selects the tax period and products. Products may be given as a
// list or as a comma separated string; "all" selects every product.
type TaxQuery struct {
	Month       string
	Start       string
	End         string
	Products    []string
	ProductsCSV string
	Overrides   reconcile.RateOverrides
}

type ProductRates struct {
	Total         decimal.Decimal      `json:"total_tax"`
	GRA           decimal.Decimal      `json:"gra_tax"`
	NPALife       decimal.Decimal      `json:"npa_life"`
	NPAComponent  decimal.Decimal      `json:"npa_component"`
	LifeComponent decimal.Decimal      `json:"life_component"`
	Source        reconcile.RateSource `json:"source"`
}

type ProductTaxBreakdown struct {
	Product             string               `json:"product"`
	VolumeMain          decimal.Decimal      `json:"volume_main"`
	VolumeNeutral       decimal.Decimal      `json:"volume_neutral"`
	NeutralTotalReturns decimal.Decimal      `json:"neutral_total_returns"`
	Rates               ProductRates         `json:"rates"`
	Rows                []reconcile.TaxRow   `json:"rows"`
	SplitRows           []reconcile.SplitRow `json:"split_rows"`
}

type TaxReport struct {
	Period           reconcile.TaxPeriod   `json:"period"`
	AllProducts      []string              `json:"all_products"`
	SelectedProducts []string              `json:"selected_products"`
	Breakdowns       []ProductTaxBreakdown `json:"breakdowns"`
}

func (s *ShareholderService) TaxBreakdown(ctx context.Context, q TaxQuery) (*TaxReport, error) {
	period, err := reconcile.ResolveTaxPeriod(q.Month, q.Start, q.End, s.clock.Now())
	if err != nil {
		return nil, validationError("%s", err.Error())
	}

	all, err := s.orders.DistinctProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	selected := selectProducts(q.Products, q.ProductsCSV, all)

	report := &TaxReport{
		Period:           period,
		AllProducts:      all,
		SelectedProducts: selected,
		Breakdowns:       make([]ProductTaxBreakdown, 0, len(selected)),
	}
	for _, product := range selected {
		b, err := s.productBreakdown(ctx, product, period, q.Overrides)
		if err != nil {
			return nil, err
		}
		report.Breakdowns = append(report.Breakdowns, *b)
	}
	return report, nil
}

func (s *ShareholderService) productBreakdown(ctx context.Context, product string, period reconcile.TaxPeriod, overrides reconcile.RateOverrides) (*ProductTaxBreakdown, error) {
	orders, err := s.orders.ListApproved(ctx, repositories.ApprovedFilter{
		Window:  period.Window(),
		Product: product,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for %s: %w", product, err)
	}
	mainOrders, neutral := reconcile.PartitionNeutral(orders)
	volMain := reconcile.Volume(mainOrders)
	volNeutral, neutralReturns := reconcile.SummarizeReturns(neutral)

	var stored *models.SharedTaxRate
	if !overrides.Complete() {
		stored, err = s.sharedTax.GetByProduct(ctx, product)
		if err != nil {
			return nil, fmt.Errorf("failed to load shared tax for %s: %w", product, err)
		}
	}
	rates, source := reconcile.ResolveRates(overrides, stored)

	return &ProductTaxBreakdown{
		Product:             product,
		VolumeMain:          volMain,
		VolumeNeutral:       volNeutral,
		NeutralTotalReturns: neutralReturns,
		Rates: ProductRates{
			Total:         rates.Total.Round(4),
			GRA:           rates.GRA.Round(4),
			NPALife:       rates.NPALife.Round(4),
			NPAComponent:  rates.NPAComponent.Round(4),
			LifeComponent: rates.LifeComponent().Round(4),
			Source:        source,
		},
		Rows:      reconcile.TaxRows(rates, volMain),
		SplitRows: reconcile.SplitComponent(rates.NPAComponent, volMain, s.shareholders),
	}, nil
}

// selectProducts keeps requested products that exist, defaulting to the
// first known product.
func selectProducts(requested []string, csv string, known []string) []string {
	var wanted []string
	for _, p := range requested {
		if p = strings.TrimSpace(p); p != "" {
			wanted = append(wanted, p)
		}
	}
	if len(wanted) == 0 {
		for _, p := range strings.Split(csv, ",") {
			if p = strings.TrimSpace(p); p != "" {
				wanted = append(wanted, p)
			}
		}
	}
	if len(wanted) == 1 && strings.EqualFold(wanted[0], "all") {
		wanted = known
	}

	exists := make(map[string]bool, len(known))
	for _, p := range known {
		exists[p] = true
	}
	seen := make(map[string]bool)
	out := make([]string, 0, len(wanted))
	for _, p := range wanted {
		if exists[p] && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if len(out) == 0 && len(known) > 0 {
		sorted := append([]string(nil), known...)
		sort.Strings(sorted)
		out = []string{sorted[0]}
	}
	return out
}

type SharedTaxRequest struct {
	Product         string        `json:"product"`
	TotalTax        *money.Amount `json:"total_tax"`
	GRATax          *money.Amount `json:"gra_tax"`
	NPALifeTax      *money.Amount `json:"npa_life_tax"`
	NPAComponentTax *money.Amount `json:"npa_component_tax"`
}

// SaveSharedTax upserts the manual rates for a product. All four rates are
// required; a blank value is stored as zero.
func (s *ShareholderService) SaveSharedTax(ctx context.Context, req SharedTaxRequest) (*models.SharedTaxRate, error) {
	product := strings.TrimSpace(req.Product)
	if product == "" {
		return nil, validationError("product is required")
	}

	var missing []string
	for _, f := range []struct {
		name string
		v    *money.Amount
	}{
		{"total_tax", req.TotalTax},
		{"gra_tax", req.GRATax},
		{"npa_life_tax", req.NPALifeTax},
		{"npa_component_tax", req.NPAComponentTax},
	} {
		if f.v == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, validationError("missing fields: %s", strings.Join(missing, ", "))
	}

	rate := &models.SharedTaxRate{
		Product:         product,
		TotalTax:        req.TotalTax.Decimal,
		GRATax:          req.GRATax.Decimal,
		NPALifeTax:      nullDecimal(req.NPALifeTax.Decimal),
		NPAComponentTax: nullDecimal(req.NPAComponentTax.Decimal),
		UpdatedAt:       s.clock.Now(),
	}
	if err := s.sharedTax.Upsert(ctx, rate); err != nil {
		return nil, fmt.Errorf("failed to save shared tax: %w", err)
	}
	s.log.Info("shared tax saved", zap.String("product", product))
	return rate, nil
}
