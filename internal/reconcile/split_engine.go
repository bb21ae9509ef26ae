package reconcile

import (
	"github.com/shopspring/decimal"

	"fuel-reconciliation-service/internal/models"
)

// Shareholder is a participant in the NPA component split.
type Shareholder struct {
	Name     string
	Fraction decimal.Decimal
}

type SplitRow struct {
	Name    string          `json:"name"`
	Percent int64           `json:"percent"`
	Rate    decimal.Decimal `json:"rate"`
	Amount  decimal.Decimal `json:"amount"`
}

type TaxRow struct {
	Label  string          `json:"label"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// SplitComponent divides the NPA component among shareholders. Each rate is
// rounded to 4dp before being applied to the volume.
func SplitComponent(componentRate, volume decimal.Decimal, shareholders []Shareholder) []SplitRow {
	rows := make([]SplitRow, 0, len(shareholders))
	for _, sh := range shareholders {
		rate := componentRate.Mul(sh.Fraction).Round(4)
		rows = append(rows, SplitRow{
			Name:    sh.Name,
			Percent: sh.Fraction.Shift(2).IntPart(),
			Rate:    rate,
			Amount:  rate.Mul(volume).Round(2),
		})
	}
	return rows
}

// TaxRows lists every rate applied to the volume. Only the NPA component is split.
func TaxRows(r TaxRates, volume decimal.Decimal) []TaxRow {
	row := func(label string, rate decimal.Decimal) TaxRow {
		return TaxRow{Label: label, Rate: rate.Round(4), Amount: rate.Mul(volume).Round(2)}
	}
	return []TaxRow{
		row("Total Tax", r.Total),
		row("GRA", r.GRA),
		row("NPA/Life", r.NPALife),
		row("Life Component", r.LifeComponent()),
		row("NPA Component", r.NPAComponent),
	}
}

// Volume sums order quantities, each rounded to whole units.
func Volume(orders []*models.Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Quantity.Round(0))
	}
	return total
}

// PartitionNeutral separates orders tagged for the neutral shareholder.
func PartitionNeutral(orders []*models.Order) (main, neutral []*models.Order) {
	for _, o := range orders {
		if o.Shareholder == models.NeutralShareholder {
			neutral = append(neutral, o)
			continue
		}
		main = append(main, o)
	}
	return main, neutral
}
