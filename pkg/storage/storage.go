package storage

import (
	"time"

	"github.com/pkg/errors"
	"github.com/procurehq/potrack/pkg/models"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrClaimRejected is returned by ClaimInvoice when the conditional update
// matched no row because the invoice is not in a claimable status. The
// service layer maps it to a Conflict.
var ErrClaimRejected = errors.New("invoice not claimable")

// POFilter narrows a purchase order listing.
type POFilter struct {
	// ExcludeStatus drops purchase orders in the given status when non-empty.
	ExcludeStatus models.POStatus
}

// POPatch carries the updatable purchase order fields. Nil means unchanged.
type POPatch struct {
	Vendor *string
	Items  *string
	Total  *float64
	Status *models.POStatus
}

// InvoicePatch carries the updatable invoice fields. Nil means unchanged.
type InvoicePatch struct {
	Status     *models.InvoiceStatus
	LinkedPOID *string
}

// RunPatch carries the terminal update applied to an automation run.
type RunPatch struct {
	Status      models.RunStatus
	POID        *string
	Details     *string
	CompletedAt time.Time
}

// RunFilter narrows an automation run listing.
type RunFilter struct {
	Status models.RunStatus
	Limit  int
}

// LogFilter narrows an activity log listing.
type LogFilter struct {
	Limit int
}

// Store defines the record store operations for the purchase order tracker.
// Create operations assign the entity id and timestamps when unset; update
// operations fail with ErrNotFound for an absent id. Begin returns a
// transactional view of the same store.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Purchase order operations
	SavePurchaseOrder(po models.PurchaseOrder) (models.PurchaseOrder, error)
	GetPurchaseOrder(id string) (models.PurchaseOrder, error)
	ListPurchaseOrders(f POFilter) ([]models.PurchaseOrder, error)
	UpdatePurchaseOrder(id string, patch POPatch) (models.PurchaseOrder, error)

	// Invoice operations
	SaveInvoice(inv models.Invoice) (models.Invoice, error)
	GetInvoice(id string) (models.Invoice, error)
	ListInvoices() ([]models.Invoice, error)
	UpdateInvoice(id string, patch InvoicePatch) (models.Invoice, error)
	// ClaimInvoice transitions an invoice to "processing" only if it is
	// currently "unprocessed" or "failed". It is the per-invoice mutual
	// exclusion guard for the automation workflow: a contender whose
	// conditional update matches no row gets ErrClaimRejected.
	ClaimInvoice(id string) (models.Invoice, error)

	// Automation run operations
	SaveAutomationRun(run models.AutomationRun) (models.AutomationRun, error)
	GetAutomationRun(id string) (models.AutomationRun, error)
	UpdateAutomationRun(id string, patch RunPatch) (models.AutomationRun, error)
	ListAutomationRuns(f RunFilter) ([]models.AutomationRun, error)
	ListRunsForInvoice(invoiceID string) ([]models.AutomationRun, error)

	// Activity log operations (append-only)
	AppendActivityLog(entry models.ActivityLog) (models.ActivityLog, error)
	ListActivityLogs(f LogFilter) ([]models.ActivityLog, error)
	ListLogsForPurchaseOrder(poID string, limit int) ([]models.ActivityLog, error)

	// Reset clears all entities. Used only by demo seeding.
	Reset() error
}
