package models

import "time"

type POStatus string

const (
	POStatusPending   POStatus = "pending"
	POStatusOrdered   POStatus = "ordered"
	POStatusDelivered POStatus = "delivered"
	POStatusReceived  POStatus = "received"
)

// poStatusFlow is the strict forward progression of a purchase order.
var poStatusFlow = []POStatus{POStatusPending, POStatusOrdered, POStatusDelivered, POStatusReceived}

// NextPOStatus returns the immediate successor of the given status. The second
// return is false when the status is terminal (received) or not recognized.
func NextPOStatus(current POStatus) (POStatus, bool) {
	for i, s := range poStatusFlow {
		if s == current {
			if i == len(poStatusFlow)-1 {
				return "", false
			}
			return poStatusFlow[i+1], true
		}
	}
	return "", false
}

// ValidPOStatus reports whether s is one of the recognized purchase order statuses.
func ValidPOStatus(s POStatus) bool {
	for _, known := range poStatusFlow {
		if s == known {
			return true
		}
	}
	return false
}

// POStatuses returns the status progression in order.
func POStatuses() []POStatus {
	out := make([]POStatus, len(poStatusFlow))
	copy(out, poStatusFlow)
	return out
}

// PurchaseOrder is a commitment to purchase goods from a vendor, tracked
// through the pending -> ordered -> delivered -> received progression.
// Items holds the JSON-encoded line items; parse/stringify happens at the
// boundary via ParseLineItems/EncodeLineItems.
type PurchaseOrder struct {
	ID        string    `json:"id" db:"id"`
	Vendor    string    `json:"vendor" db:"vendor"`
	Items     string    `json:"items" db:"items"`
	Total     float64   `json:"total" db:"total"`
	Status    POStatus  `json:"status" db:"status"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// ActivityLogs is populated by the service layer when requested.
	ActivityLogs []ActivityLog `json:"activityLogs,omitempty" db:"-"`
}
