package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"fuel-reconciliation-service/internal/models"
)

// TaxRatePerUnit returns the per-unit S-Tax snapshotted on the order. The
// canonical column wins; the legacy spelling is read only when it is null.
func TaxRatePerUnit(o *models.Order) decimal.Decimal {
	if o == nil {
		return decimal.Zero
	}
	if o.STax.Valid {
		return o.STax.Decimal
	}
	if o.STaxAlt.Valid {
		return o.STaxAlt.Decimal
	}
	return decimal.Zero
}

// TaxDue is rate × quantity rounded to 2dp. Orders without a rate owe nothing.
func TaxDue(o *models.Order) decimal.Decimal {
	if o == nil {
		return decimal.Zero
	}
	return TaxRatePerUnit(o).Mul(o.Quantity).Round(2)
}

// NormalizeOrderType maps the accepted aliases onto the stored order types.
func NormalizeOrderType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "s_bdc", "sale":
		return models.OrderTypeSale
	case "s_tax", "tax":
		return models.OrderTypeTax
	case "combo":
		return models.OrderTypeCombo
	default:
		return ""
	}
}

// IsTaxEligible is true for tax or combo orders and for any order carrying a
// positive S-Tax rate, typed or not.
func IsTaxEligible(o *models.Order) bool {
	if o == nil {
		return false
	}
	switch NormalizeOrderType(o.OrderType) {
	case models.OrderTypeTax, models.OrderTypeCombo:
		return true
	}
	return (o.STax.Valid && o.STax.Decimal.IsPositive()) ||
		(o.STaxAlt.Valid && o.STaxAlt.Decimal.IsPositive())
}

// NormalizeTaxType lowercases and drops separators: "S-Tax", "s_tax" and
// "S Tax" all become "stax".
func NormalizeTaxType(t string) string {
	r := strings.NewReplacer("_", "", "-", "", " ", "")
	return r.Replace(strings.ToLower(strings.TrimSpace(t)))
}

// TaxTypeKeys are the normalized record types that count as tax payments.
var TaxTypeKeys = []string{"stax", "tax"}

func IsTaxType(t string) bool {
	n := NormalizeTaxType(t)
	for _, k := range TaxTypeKeys {
		if n == k {
			return true
		}
	}
	return false
}

// Remaining is max(0, round(due - paid, 2)).
func Remaining(due, paid decimal.Decimal) decimal.Decimal {
	rem := due.Sub(paid).Round(2)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// NextTaxPaymentStatus moves forward only; a paid order never drops back to partial.
func NextTaxPaymentStatus(current string, remaining decimal.Decimal) string {
	if current == models.TaxPaymentPaid || !remaining.IsPositive() {
		return models.TaxPaymentPaid
	}
	return models.TaxPaymentPartial
}
