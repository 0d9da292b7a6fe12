package models

import "time"

type InvoiceStatus string

const (
	InvoiceStatusUnprocessed InvoiceStatus = "unprocessed"
	InvoiceStatusProcessing  InvoiceStatus = "processing"
	InvoiceStatusProcessed   InvoiceStatus = "processed"
	InvoiceStatusFailed      InvoiceStatus = "failed"
)

// ValidInvoiceStatus reports whether s is a recognized invoice status.
func ValidInvoiceStatus(s InvoiceStatus) bool {
	switch s {
	case InvoiceStatusUnprocessed, InvoiceStatusProcessing, InvoiceStatusProcessed, InvoiceStatusFailed:
		return true
	}
	return false
}

// Invoice is a vendor billing document that the automation workflow may
// convert into a purchase order. Unlike the PO progression the invoice states
// are not a strict order: "failed" is retriable back through "processing",
// and "processing" is only ever entered by the workflow engine.
type Invoice struct {
	ID         string        `json:"id" db:"id"`
	Vendor     string        `json:"vendor" db:"vendor"`
	LineItems  string        `json:"lineItems" db:"line_items"`
	Total      float64       `json:"total" db:"total"`
	Status     InvoiceStatus `json:"status" db:"status"`
	LinkedPOID *string       `json:"linkedPOId" db:"linked_po_id"`
	CreatedAt  time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time     `json:"updatedAt" db:"updated_at"`

	// AutomationRuns is populated by the service layer when requested.
	AutomationRuns []AutomationRun `json:"automationRuns,omitempty" db:"-"`
}
