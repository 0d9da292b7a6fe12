package models

import (
	"encoding/json"
	"time"
)

type ActivityAction string

const (
	ActionCreated            ActivityAction = "created"
	ActionStatusChanged      ActivityAction = "status_changed"
	ActionCreatedFromInvoice ActivityAction = "created_from_invoice"
)

// EntityTypePurchaseOrder is the only entity type the audit trail records today.
const EntityTypePurchaseOrder = "purchase_order"

// ActivityLog is one append-only audit entry. Entries are never mutated or
// deleted except by a bulk reset during seeding.
type ActivityLog struct {
	ID              string         `json:"id" db:"id"`
	EntityType      string         `json:"entityType" db:"entity_type"`
	EntityID        string         `json:"entityId" db:"entity_id"`
	Action          ActivityAction `json:"action" db:"action"`
	Details         *string        `json:"details" db:"details"`
	Timestamp       time.Time      `json:"timestamp" db:"timestamp"`
	PurchaseOrderID *string        `json:"purchaseOrderId" db:"purchase_order_id"`

	// PurchaseOrder carries the vendor of the referenced PO on read paths
	// that join it in (dashboard recent activity).
	PurchaseOrder *ActivityLogPO `json:"purchaseOrder,omitempty" db:"-"`
}

// ActivityLogPO is the slim purchase order summary attached to a log entry.
type ActivityLogPO struct {
	Vendor string `json:"vendor"`
}

// StatusChangeDetails is the semantic delta recorded for a status change.
type StatusChangeDetails struct {
	From POStatus `json:"from"`
	To   POStatus `json:"to"`
}

// CreationDetails is recorded when a purchase order is created directly.
type CreationDetails struct {
	Vendor string  `json:"vendor"`
	Total  float64 `json:"total"`
}

// GenerationDetails is recorded when the automation workflow derives a
// purchase order from an invoice.
type GenerationDetails struct {
	InvoiceID string  `json:"invoiceId"`
	Vendor    string  `json:"vendor"`
	Total     float64 `json:"total"`
}

// DetailsString serializes a details payload for storage. Returns nil for a
// payload that cannot be encoded, which no payload type in this package can hit.
func DetailsString(v interface{}) *string {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}
