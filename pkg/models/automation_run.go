package models

import "time"

type RunStatus string

const (
	RunStatusProcessing RunStatus = "processing"
	RunStatusSuccess    RunStatus = "success"
	RunStatusFailed     RunStatus = "failed"
)

// AutomationRun records one attempt to derive a purchase order from an
// invoice. A run is created in "processing" and updated exactly once more to
// a terminal "success" or "failed"; it is never deleted except by bulk reset.
type AutomationRun struct {
	ID          string     `json:"id" db:"id"`
	InvoiceID   string     `json:"invoiceId" db:"invoice_id"`
	POID        *string    `json:"poId" db:"po_id"`
	Status      RunStatus  `json:"status" db:"status"`
	Details     *string    `json:"details" db:"details"`
	StartedAt   time.Time  `json:"startedAt" db:"started_at"`
	CompletedAt *time.Time `json:"completedAt" db:"completed_at"`

	// Invoice carries a summary of the source invoice on read paths that
	// join it in (run history listing).
	Invoice *RunInvoice `json:"invoice,omitempty" db:"-"`
}

// RunInvoice is the slim invoice summary attached to a run.
type RunInvoice struct {
	ID     string        `json:"id"`
	Vendor string        `json:"vendor"`
	Total  float64       `json:"total"`
	Status InvoiceStatus `json:"status"`
}

// RunSuccessDetails is the payload recorded on a successful run.
type RunSuccessDetails struct {
	Vendor    string  `json:"vendor"`
	Total     float64 `json:"total"`
	ItemCount int     `json:"itemCount"`
}

// RunFailureDetails is the payload recorded on a failed run.
type RunFailureDetails struct {
	Error string `json:"error"`
}

// RunSummary is the caller-facing view of a finished run.
type RunSummary struct {
	ID          string    `json:"id"`
	Status      RunStatus `json:"status"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
	// Duration is completedAt minus startedAt in milliseconds.
	Duration int64 `json:"duration"`
}
