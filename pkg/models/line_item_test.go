package models_test

import (
	"testing"

	"github.com/procurehq/potrack/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.56, models.Round2(10.555))
	assert.Equal(t, 10.55, models.Round2(10.554))
	assert.Equal(t, 0.0, models.Round2(0))
	assert.Equal(t, 125.0, models.Round2(125.0000001))
}

func TestLineItemValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		li := models.NewLineItem("Widget", 5, 25.0)
		assert.NoError(t, li.Validate())
		assert.Equal(t, 125.0, li.Total)
	})

	t.Run("EmptyName", func(t *testing.T) {
		li := models.NewLineItem("", 5, 25.0)
		assert.Error(t, li.Validate())
	})

	t.Run("ZeroQuantity", func(t *testing.T) {
		li := models.LineItem{Name: "Widget", Quantity: 0, UnitPrice: 25.0, Total: 0}
		err := li.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "quantity must be positive")
	})

	t.Run("NegativeUnitPrice", func(t *testing.T) {
		li := models.LineItem{Name: "Widget", Quantity: 1, UnitPrice: -1, Total: -1}
		err := li.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unit price cannot be negative")
	})

	t.Run("TotalMismatch", func(t *testing.T) {
		li := models.LineItem{Name: "Widget", Quantity: 2, UnitPrice: 25.0, Total: 49.99}
		err := li.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "does not equal quantity * unit price")
	})

	t.Run("TotalRoundedFromFractionalPrice", func(t *testing.T) {
		// 3 * 10.333 = 30.999 -> 31.00
		li := models.NewLineItem("Widget", 3, 10.333)
		assert.Equal(t, 31.0, li.Total)
		assert.NoError(t, li.Validate())
	})
}

func TestParseLineItems(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		items := []models.LineItem{
			models.NewLineItem("Widget", 5, 25.0),
			models.NewLineItem("Gadget", 2, 9.99),
		}
		encoded, err := models.EncodeLineItems(items)
		assert.NoError(t, err)

		parsed, err := models.ParseLineItems(encoded)
		assert.NoError(t, err)
		assert.Equal(t, items, parsed)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		_, err := models.ParseLineItems("not json at all")
		assert.Error(t, err)
	})

	t.Run("EmptyArray", func(t *testing.T) {
		_, err := models.ParseLineItems("[]")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})

	t.Run("InvalidItem", func(t *testing.T) {
		_, err := models.ParseLineItems(`[{"name":"Widget","quantity":-1,"unitPrice":5,"total":-5}]`)
		assert.Error(t, err)
	})
}

func TestSumLineItems(t *testing.T) {
	items := []models.LineItem{
		models.NewLineItem("A", 1, 0.1),
		models.NewLineItem("B", 1, 0.2),
	}
	assert.Equal(t, 0.3, models.SumLineItems(items))
	assert.Equal(t, 0.0, models.SumLineItems(nil))
}
