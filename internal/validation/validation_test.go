package validation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	ProductID int             `validate:"required,gt=0"`
	Quantity  decimal.Decimal `validate:"gte=0.001"`
}

type request struct {
	Name  string `validate:"required,min=2"`
	Lines []line `validate:"dive"`
}

func TestDecimalTags(t *testing.T) {
	ok := request{Name: "Pan", Lines: []line{{ProductID: 1, Quantity: decimal.RequireFromString("0.001")}}}
	require.NoError(t, Struct(ok))

	bad := request{Name: "P", Lines: []line{{ProductID: 0, Quantity: decimal.RequireFromString("0.0001")}}}
	fields := Fields(Struct(bad))
	assert.Equal(t, map[string]string{
		"request.Name":                "min",
		"request.Lines[0].ProductID": "required",
		"request.Lines[0].Quantity":  "gte",
	}, fields)
}

func TestFieldsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, Fields(errors.New("boom")))
	assert.Nil(t, Fields(nil))
}
