// Package generator produces pseudo data for demos and seeding.
package generator

import (
	"math/rand"

	"github.com/procurehq/potrack/pkg/models"
)

var vendors = []string{
	"Acme Supplies Co.",
	"Global Parts Inc.",
	"Tech Components Ltd.",
	"Office Essentials",
	"Industrial Materials Corp.",
	"Quick Ship Logistics",
	"Premium Goods LLC",
	"Eastern Distributors",
}

type productCategory struct {
	Name  string
	Items []string
}

var productCategories = []productCategory{
	{Name: "Office Supplies", Items: []string{"Paper Reams", "Printer Ink", "Staplers", "Folders", "Pens (Box)"}},
	{Name: "Electronics", Items: []string{"USB Cables", "Monitors", "Keyboards", "Mice", "Webcams"}},
	{Name: "Industrial", Items: []string{"Safety Gloves", "Hard Hats", "Steel Bolts", "Lubricant", "Wire Spools"}},
	{Name: "Furniture", Items: []string{"Office Chairs", "Desks", "Filing Cabinets", "Shelving Units", "Lamps"}},
}

// RandomVendor picks a vendor name.
func RandomVendor() string {
	return vendors[rand.Intn(len(vendors))]
}

// RandInt returns a random int in [min, max].
func RandInt(min, max int) int {
	return rand.Intn(max-min+1) + min
}

// RandomLineItems generates count line items; count <= 0 picks 1-5 at random.
// Every item holds the rounded-total invariant.
func RandomLineItems(count int) []models.LineItem {
	if count <= 0 {
		count = RandInt(1, 5)
	}
	items := make([]models.LineItem, 0, count)
	for i := 0; i < count; i++ {
		category := productCategories[rand.Intn(len(productCategories))]
		name := category.Items[rand.Intn(len(category.Items))]
		quantity := RandInt(1, 50)
		unitPrice := models.Round2(rand.Float64()*200 + 5)
		items = append(items, models.NewLineItem(name, quantity, unitPrice))
	}
	return items
}

// RandomPurchaseOrder generates a pending purchase order with random line items.
func RandomPurchaseOrder() (models.PurchaseOrder, error) {
	items := RandomLineItems(0)
	encoded, err := models.EncodeLineItems(items)
	if err != nil {
		return models.PurchaseOrder{}, err
	}
	return models.PurchaseOrder{
		Vendor: RandomVendor(),
		Items:  encoded,
		Total:  models.SumLineItems(items),
		Status: models.POStatusPending,
	}, nil
}

// RandomInvoice generates an invoice. A non-empty linkedPOID yields a
// processed invoice already linked to that purchase order.
func RandomInvoice(linkedPOID string) (models.Invoice, error) {
	items := RandomLineItems(0)
	encoded, err := models.EncodeLineItems(items)
	if err != nil {
		return models.Invoice{}, err
	}
	inv := models.Invoice{
		Vendor:    RandomVendor(),
		LineItems: encoded,
		Total:     models.SumLineItems(items),
		Status:    models.InvoiceStatusUnprocessed,
	}
	if linkedPOID != "" {
		inv.Status = models.InvoiceStatusProcessed
		inv.LinkedPOID = &linkedPOID
	}
	return inv, nil
}
