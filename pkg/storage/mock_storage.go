package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/procurehq/potrack/pkg/models"
)

// MockStore implements Store with in-memory storage for unit tests and demos.
// Begin returns the store itself: writes are immediate and Rollback is a
// no-op, which is enough for exercising service logic without Postgres.
type MockStore struct {
	mu             sync.Mutex
	purchaseOrders []models.PurchaseOrder
	invoices       []models.Invoice
	runs           []models.AutomationRun
	logs           []models.ActivityLog
}

// NewMockStore returns an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Begin() (Store, error) { return m, nil }
func (m *MockStore) Commit() error         { return nil }
func (m *MockStore) Rollback() error       { return nil }
func (m *MockStore) Close() error          { return nil }

func (m *MockStore) SavePurchaseOrder(po models.PurchaseOrder) (models.PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if po.ID == "" {
		po.ID = uuid.NewString()
	}
	if po.CreatedAt.IsZero() {
		po.CreatedAt = now
	}
	po.UpdatedAt = now
	m.purchaseOrders = append(m.purchaseOrders, po)
	return po, nil
}

func (m *MockStore) GetPurchaseOrder(id string) (models.PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, po := range m.purchaseOrders {
		if po.ID == id {
			return po, nil
		}
	}
	return models.PurchaseOrder{}, ErrNotFound
}

func (m *MockStore) ListPurchaseOrders(f POFilter) ([]models.PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.PurchaseOrder{}
	for _, po := range m.purchaseOrders {
		if f.ExcludeStatus != "" && po.Status == f.ExcludeStatus {
			continue
		}
		out = append(out, po)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockStore) UpdatePurchaseOrder(id string, patch POPatch) (models.PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, po := range m.purchaseOrders {
		if po.ID != id {
			continue
		}
		if patch.Vendor != nil {
			po.Vendor = *patch.Vendor
		}
		if patch.Items != nil {
			po.Items = *patch.Items
		}
		if patch.Total != nil {
			po.Total = *patch.Total
		}
		if patch.Status != nil {
			po.Status = *patch.Status
		}
		po.UpdatedAt = time.Now()
		m.purchaseOrders[i] = po
		return po, nil
	}
	return models.PurchaseOrder{}, ErrNotFound
}

func (m *MockStore) SaveInvoice(inv models.Invoice) (models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now
	m.invoices = append(m.invoices, inv)
	return inv, nil
}

func (m *MockStore) GetInvoice(id string) (models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.ID == id {
			return inv, nil
		}
	}
	return models.Invoice{}, ErrNotFound
}

func (m *MockStore) ListInvoices() ([]models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Invoice, len(m.invoices))
	copy(out, m.invoices)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockStore) UpdateInvoice(id string, patch InvoicePatch) (models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateInvoiceLocked(id, patch)
}

func (m *MockStore) updateInvoiceLocked(id string, patch InvoicePatch) (models.Invoice, error) {
	for i, inv := range m.invoices {
		if inv.ID != id {
			continue
		}
		if patch.Status != nil {
			inv.Status = *patch.Status
		}
		if patch.LinkedPOID != nil {
			inv.LinkedPOID = patch.LinkedPOID
		}
		inv.UpdatedAt = time.Now()
		m.invoices[i] = inv
		return inv, nil
	}
	return models.Invoice{}, ErrNotFound
}

func (m *MockStore) ClaimInvoice(id string) (models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, inv := range m.invoices {
		if inv.ID != id {
			continue
		}
		if inv.Status != models.InvoiceStatusUnprocessed && inv.Status != models.InvoiceStatusFailed {
			return models.Invoice{}, ErrClaimRejected
		}
		inv.Status = models.InvoiceStatusProcessing
		inv.UpdatedAt = time.Now()
		m.invoices[i] = inv
		return inv, nil
	}
	return models.Invoice{}, ErrNotFound
}

func (m *MockStore) SaveAutomationRun(run models.AutomationRun) (models.AutomationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	m.runs = append(m.runs, run)
	return run, nil
}

func (m *MockStore) GetAutomationRun(id string) (models.AutomationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return models.AutomationRun{}, ErrNotFound
}

func (m *MockStore) UpdateAutomationRun(id string, patch RunPatch) (models.AutomationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, run := range m.runs {
		if run.ID != id {
			continue
		}
		run.Status = patch.Status
		if patch.POID != nil {
			run.POID = patch.POID
		}
		if patch.Details != nil {
			run.Details = patch.Details
		}
		completedAt := patch.CompletedAt
		run.CompletedAt = &completedAt
		m.runs[i] = run
		return run, nil
	}
	return models.AutomationRun{}, ErrNotFound
}

func (m *MockStore) ListAutomationRuns(f RunFilter) ([]models.AutomationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.AutomationRun{}
	for _, run := range m.runs {
		if f.Status != "" && run.Status != f.Status {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	for i := range out {
		for _, inv := range m.invoices {
			if inv.ID == out[i].InvoiceID {
				out[i].Invoice = &models.RunInvoice{ID: inv.ID, Vendor: inv.Vendor, Total: inv.Total, Status: inv.Status}
				break
			}
		}
	}
	return out, nil
}

func (m *MockStore) ListRunsForInvoice(invoiceID string) ([]models.AutomationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.AutomationRun{}
	for _, run := range m.runs {
		if run.InvoiceID == invoiceID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (m *MockStore) AppendActivityLog(entry models.ActivityLog) (models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	m.logs = append(m.logs, entry)
	return entry, nil
}

func (m *MockStore) ListActivityLogs(f LogFilter) ([]models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ActivityLog, len(m.logs))
	copy(out, m.logs)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	for i := range out {
		if out[i].PurchaseOrderID == nil {
			continue
		}
		for _, po := range m.purchaseOrders {
			if po.ID == *out[i].PurchaseOrderID {
				out[i].PurchaseOrder = &models.ActivityLogPO{Vendor: po.Vendor}
				break
			}
		}
	}
	return out, nil
}

func (m *MockStore) ListLogsForPurchaseOrder(poID string, limit int) ([]models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ActivityLog{}
	for _, entry := range m.logs {
		if entry.PurchaseOrderID != nil && *entry.PurchaseOrderID == poID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStore) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchaseOrders = nil
	m.invoices = nil
	m.runs = nil
	m.logs = nil
	return nil
}
