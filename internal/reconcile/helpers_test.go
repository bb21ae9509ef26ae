package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"fuel-reconciliation-service/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(s), Valid: true}
}

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s got %s", want, got.String()}, msgAndArgs...)...)
}

func taxOrder(id uint64, date string, qty, rate string) *models.Order {
	return &models.Order{
		ID:        id,
		OrderRef:  "O" + decimal.NewFromInt(int64(id)).String(),
		OMC:       "X",
		OrderType: models.OrderTypeTax,
		Quantity:  dec(qty),
		STax:      nullDec(rate),
		OrderedAt: day(date),
	}
}
