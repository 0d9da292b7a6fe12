package models

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
)

// LineItem is one priced product entry within a purchase order or invoice.
type LineItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Total     float64 `json:"total"`
}

// Round2 rounds a monetary amount to 2 decimal places. Rounding happens at
// computation time, not storage time.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Validate checks the line item invariants: positive quantity, non-negative
// unit price, and total equal to the rounded product.
func (li LineItem) Validate() error {
	if li.Name == "" {
		return errors.New("line item name is empty")
	}
	if li.Quantity <= 0 {
		return errors.Errorf("line item %q: quantity must be positive, got %d", li.Name, li.Quantity)
	}
	if li.UnitPrice < 0 {
		return errors.Errorf("line item %q: unit price cannot be negative, got %.2f", li.Name, li.UnitPrice)
	}
	if want := Round2(float64(li.Quantity) * li.UnitPrice); li.Total != want {
		return errors.Errorf("line item %q: total %.2f does not equal quantity * unit price (%.2f)", li.Name, li.Total, want)
	}
	return nil
}

// NewLineItem builds a line item with its total computed from quantity and
// unit price.
func NewLineItem(name string, quantity int, unitPrice float64) LineItem {
	return LineItem{
		Name:      name,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Total:     Round2(float64(quantity) * unitPrice),
	}
}

// ParseLineItems decodes the serialized line-item payload stored on an invoice
// or purchase order and validates every entry. A malformed payload is an error
// the automation workflow treats as a run failure.
func ParseLineItems(raw string) ([]LineItem, error) {
	var items []LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, errors.Wrap(err, "parse line items")
	}
	if len(items) == 0 {
		return nil, errors.New("line items payload is empty")
	}
	for _, li := range items {
		if err := li.Validate(); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// EncodeLineItems serializes line items for storage.
func EncodeLineItems(items []LineItem) (string, error) {
	b, err := json.Marshal(items)
	if err != nil {
		return "", errors.Wrap(err, "encode line items")
	}
	return string(b), nil
}

// SumLineItems returns the rounded sum of the line totals.
func SumLineItems(items []LineItem) float64 {
	var sum float64
	for _, li := range items {
		sum += li.Total
	}
	return Round2(sum)
}
