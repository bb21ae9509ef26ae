package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receipt struct {
	Amount string `json:"amount" validate:"required"`
	Bank   string `json:"bank_name,omitempty" validate:"max=3"`
	Secret string `json:"-" validate:"omitempty"`
}

func TestDescribeUsesJSONNames(t *testing.T) {
	err := New().Struct(receipt{Bank: "Ecobank"})
	require.Error(t, err)
	assert.EqualError(t, Describe(err), "amount: required, bank_name: max")
}

func TestDescribePassesOtherErrorsThrough(t *testing.T) {
	other := errors.New("boom")
	assert.Same(t, other, Describe(other))
	assert.NoError(t, New().Struct(receipt{Amount: "1", Bank: "GCB"}))
}
