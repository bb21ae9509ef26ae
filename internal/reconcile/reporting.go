package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"fuel-reconciliation-service/internal/models"
)

// OrderReturns prefers total_returns, then returns_total, then margin × quantity.
func OrderReturns(o *models.Order) decimal.Decimal {
	if o.TotalReturns.Valid {
		return o.TotalReturns.Decimal
	}
	if o.ReturnsTotal.Valid {
		return o.ReturnsTotal.Decimal
	}
	margin := decimal.Zero
	if o.Margin.Valid {
		margin = o.Margin.Decimal
	}
	return margin.Mul(o.Quantity).Round(2)
}

type Contribution struct {
	Name                string          `json:"name"`
	Orders              int             `json:"orders"`
	Quantity            decimal.Decimal `json:"quantity"`
	Returns             decimal.Decimal `json:"returns"`
	PercentageOfReturns decimal.Decimal `json:"percentage_of_returns"`
	SharedReturns       decimal.Decimal `json:"shared_returns"`
}

type ContributionSummary struct {
	TotalOrders   int             `json:"total_orders"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalReturns  decimal.Decimal `json:"total_returns"`
	Contributions []Contribution  `json:"contributions"`
}

// Contributions attributes returns to configured shareholders. Percentages are
// of the window's total returns and are zero when that total is zero.
func Contributions(orders []*models.Order, shareholders []Shareholder) ContributionSummary {
	summary := ContributionSummary{TotalOrders: len(orders)}

	totalQty := decimal.Zero
	totalReturns := decimal.Zero
	for _, o := range orders {
		totalQty = totalQty.Add(o.Quantity)
		totalReturns = totalReturns.Add(OrderReturns(o))
	}
	summary.TotalQuantity = totalQty.Round(0)
	summary.TotalReturns = totalReturns.Round(2)

	index := make(map[string]int, len(shareholders))
	summary.Contributions = make([]Contribution, len(shareholders))
	for i, sh := range shareholders {
		index[sh.Name] = i
		summary.Contributions[i] = Contribution{
			Name:          sh.Name,
			Quantity:      decimal.Zero,
			Returns:       decimal.Zero,
			SharedReturns: sh.Fraction.Mul(summary.TotalReturns).Round(2),
		}
	}

	for _, o := range orders {
		i, ok := index[o.Shareholder]
		if !ok {
			continue
		}
		c := &summary.Contributions[i]
		c.Orders++
		c.Quantity = c.Quantity.Add(o.Quantity.Round(0))
		c.Returns = c.Returns.Add(OrderReturns(o).Round(2))
	}

	hundred := decimal.NewFromInt(100)
	for i := range summary.Contributions {
		c := &summary.Contributions[i]
		c.PercentageOfReturns = decimal.Zero
		if !summary.TotalReturns.IsZero() {
			c.PercentageOfReturns = c.Returns.Div(summary.TotalReturns).Mul(hundred).Round(2)
		}
	}
	return summary
}

type ShareholderVolume struct {
	Name   string          `json:"name"`
	Volume decimal.Decimal `json:"volume"`
}

// Volumes sums rounded quantities per configured shareholder.
func Volumes(orders []*models.Order, shareholders []Shareholder) []ShareholderVolume {
	index := make(map[string]int, len(shareholders))
	out := make([]ShareholderVolume, len(shareholders))
	for i, sh := range shareholders {
		index[sh.Name] = i
		out[i] = ShareholderVolume{Name: sh.Name, Volume: decimal.Zero}
	}
	for _, o := range orders {
		if i, ok := index[o.Shareholder]; ok {
			out[i].Volume = out[i].Volume.Add(o.Quantity.Round(0))
		}
	}
	return out
}

// SummarizeReturns returns the rounded volume and total returns of orders.
func SummarizeReturns(orders []*models.Order) (decimal.Decimal, decimal.Decimal) {
	returns := decimal.Zero
	for _, o := range orders {
		returns = returns.Add(OrderReturns(o))
	}
	return Volume(orders), returns.Round(2)
}

type MonthBucket struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthlyTrend buckets tax payments by calendar month, January first,
// regardless of year.
func MonthlyTrend(records []models.TaxRecord) []MonthBucket {
	buckets := make([]MonthBucket, 12)
	for m := time.January; m <= time.December; m++ {
		buckets[m-1] = MonthBucket{Month: m.String(), Amount: decimal.Zero}
	}
	for _, r := range records {
		if r.PaymentDate.IsZero() || !IsTaxType(r.Type) {
			continue
		}
		i := r.PaymentDate.Month() - 1
		buckets[i].Amount = buckets[i].Amount.Add(r.Amount)
	}
	for i := range buckets {
		buckets[i].Amount = buckets[i].Amount.Round(2)
	}
	return buckets
}
