package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"fuel-reconciliation-service/internal/models"
	"fuel-reconciliation-service/internal/money"
)

// TaxRates are per-unit rates for one product.
type TaxRates struct {
	Total        decimal.Decimal `json:"total_tax"`
	GRA          decimal.Decimal `json:"gra_tax"`
	NPALife      decimal.Decimal `json:"npa_life"`
	NPAComponent decimal.Decimal `json:"npa_component"`
}

// LifeComponent is the informational max(npa_life - npa_component, 0).
func (r TaxRates) LifeComponent() decimal.Decimal {
	return money.Max(r.NPALife.Sub(r.NPAComponent), decimal.Zero)
}

type RateSource string

const (
	RateSourceOverride RateSource = "override"
	RateSourceStored   RateSource = "stored"
	RateSourceNone     RateSource = "none"
)

// RateOverrides are request-supplied rates. They apply only as a full set.
type RateOverrides struct {
	Total        decimal.NullDecimal
	GRA          decimal.NullDecimal
	NPALife      decimal.NullDecimal
	NPAComponent decimal.NullDecimal
}

// ParseRateOverrides treats blank values as absent. A present value that is
// not a number counts as zero.
func ParseRateOverrides(total, gra, npaLife, npaComponent string) RateOverrides {
	parse := func(s string) decimal.NullDecimal {
		if strings.TrimSpace(s) == "" {
			return decimal.NullDecimal{}
		}
		return decimal.NullDecimal{Decimal: money.Parse(s), Valid: true}
	}
	return RateOverrides{
		Total:        parse(total),
		GRA:          parse(gra),
		NPALife:      parse(npaLife),
		NPAComponent: parse(npaComponent),
	}
}

func (o RateOverrides) Complete() bool {
	return o.Total.Valid && o.GRA.Valid && o.NPALife.Valid && o.NPAComponent.Valid
}

// ResolveRates picks a complete override set first, then the stored rate,
// then zeros. A stored rate missing its NPA sub-rates derives both from
// max(total - gra, 0).
func ResolveRates(overrides RateOverrides, stored *models.SharedTaxRate) (TaxRates, RateSource) {
	if overrides.Complete() {
		return TaxRates{
			Total:        overrides.Total.Decimal,
			GRA:          overrides.GRA.Decimal,
			NPALife:      overrides.NPALife.Decimal,
			NPAComponent: overrides.NPAComponent.Decimal,
		}, RateSourceOverride
	}

	if stored != nil {
		rates := TaxRates{Total: stored.TotalTax, GRA: stored.GRATax}
		fallback := money.Max(stored.TotalTax.Sub(stored.GRATax), decimal.Zero)

		rates.NPALife = fallback
		if stored.NPALifeTax.Valid {
			rates.NPALife = stored.NPALifeTax.Decimal
		}
		// TODO: confirm with finance whether an unset component should be
		// total - gra like NPA/Life; until then both sub-rates share it.
		rates.NPAComponent = fallback
		if stored.NPAComponentTax.Valid {
			rates.NPAComponent = stored.NPAComponentTax.Decimal
		}
		return rates, RateSourceStored
	}

	return TaxRates{}, RateSourceNone
}
