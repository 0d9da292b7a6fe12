package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/procurehq/potrack/pkg/models"
	"github.com/procurehq/potrack/pkg/storage"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil
}

const poColumns = "id, vendor, items, total, status, created_at, updated_at"

// SavePurchaseOrder creates a purchase order, assigning the id and creation
// time when unset (seeding passes back-dated creation times).
func (s *PostgresStore) SavePurchaseOrder(po models.PurchaseOrder) (models.PurchaseOrder, error) {
	if po.ID == "" {
		po.ID = uuid.NewString()
	}
	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now()
	}
	var saved models.PurchaseOrder
	err := s.db.QueryRowx(`INSERT INTO purchase_orders (id, vendor, items, total, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP) RETURNING `+poColumns,
		po.ID, po.Vendor, po.Items, po.Total, po.Status, po.CreatedAt).StructScan(&saved)
	if err != nil {
		return models.PurchaseOrder{}, fmt.Errorf("save purchase order: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) GetPurchaseOrder(id string) (models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := s.db.Get(&po, "SELECT "+poColumns+" FROM purchase_orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.PurchaseOrder{}, storage.ErrNotFound
	}
	if err != nil {
		return models.PurchaseOrder{}, fmt.Errorf("get purchase order %s: %w", id, err)
	}
	return po, nil
}

func (s *PostgresStore) ListPurchaseOrders(f storage.POFilter) ([]models.PurchaseOrder, error) {
	pos := []models.PurchaseOrder{}
	query := "SELECT " + poColumns + " FROM purchase_orders"
	args := []interface{}{}
	if f.ExcludeStatus != "" {
		query += " WHERE status <> $1"
		args = append(args, f.ExcludeStatus)
	}
	query += " ORDER BY created_at DESC"
	if err := s.db.Select(&pos, query, args...); err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	return pos, nil
}

func (s *PostgresStore) UpdatePurchaseOrder(id string, patch storage.POPatch) (models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := s.db.QueryRowx(`
		UPDATE purchase_orders
		SET vendor = COALESCE($1, vendor),
		    items = COALESCE($2, items),
		    total = COALESCE($3, total),
		    status = COALESCE($4, status),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $5
		RETURNING `+poColumns,
		patch.Vendor, patch.Items, patch.Total, (*string)(patch.Status), id).StructScan(&po)
	if err == sql.ErrNoRows {
		return models.PurchaseOrder{}, storage.ErrNotFound
	}
	if err != nil {
		return models.PurchaseOrder{}, fmt.Errorf("update purchase order %s: %w", id, err)
	}
	return po, nil
}

const invoiceColumns = "id, vendor, line_items, total, status, linked_po_id, created_at, updated_at"

func (s *PostgresStore) SaveInvoice(inv models.Invoice) (models.Invoice, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	var saved models.Invoice
	err := s.db.QueryRowx(`INSERT INTO invoices (id, vendor, line_items, total, status, linked_po_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP) RETURNING `+invoiceColumns,
		inv.ID, inv.Vendor, inv.LineItems, inv.Total, inv.Status, inv.LinkedPOID, inv.CreatedAt).StructScan(&saved)
	if err != nil {
		return models.Invoice{}, fmt.Errorf("save invoice: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) GetInvoice(id string) (models.Invoice, error) {
	var inv models.Invoice
	err := s.db.Get(&inv, "SELECT "+invoiceColumns+" FROM invoices WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Invoice{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Invoice{}, fmt.Errorf("get invoice %s: %w", id, err)
	}
	return inv, nil
}

func (s *PostgresStore) ListInvoices() ([]models.Invoice, error) {
	invoices := []models.Invoice{}
	err := s.db.Select(&invoices, "SELECT "+invoiceColumns+" FROM invoices ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

func (s *PostgresStore) UpdateInvoice(id string, patch storage.InvoicePatch) (models.Invoice, error) {
	var inv models.Invoice
	err := s.db.QueryRowx(`
		UPDATE invoices
		SET status = COALESCE($1, status),
		    linked_po_id = COALESCE($2, linked_po_id),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
		RETURNING `+invoiceColumns,
		(*string)(patch.Status), patch.LinkedPOID, id).StructScan(&inv)
	if err == sql.ErrNoRows {
		return models.Invoice{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Invoice{}, fmt.Errorf("update invoice %s: %w", id, err)
	}
	return inv, nil
}

// ClaimInvoice is the conditional update guarding the automation workflow:
// only an unprocessed or failed invoice transitions to processing. A zero-row
// match on an existing invoice means another caller holds the claim (or the
// invoice is already processed) and yields ErrClaimRejected.
func (s *PostgresStore) ClaimInvoice(id string) (models.Invoice, error) {
	var inv models.Invoice
	err := s.db.QueryRowx(`
		UPDATE invoices
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND status IN ($3, $4)
		RETURNING `+invoiceColumns,
		models.InvoiceStatusProcessing, id, models.InvoiceStatusUnprocessed, models.InvoiceStatusFailed).StructScan(&inv)
	if err == sql.ErrNoRows {
		if _, getErr := s.GetInvoice(id); getErr != nil {
			return models.Invoice{}, getErr
		}
		return models.Invoice{}, storage.ErrClaimRejected
	}
	if err != nil {
		return models.Invoice{}, fmt.Errorf("claim invoice %s: %w", id, err)
	}
	return inv, nil
}

const runColumns = "id, invoice_id, po_id, status, details, started_at, completed_at"

func (s *PostgresStore) SaveAutomationRun(run models.AutomationRun) (models.AutomationRun, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	var saved models.AutomationRun
	err := s.db.QueryRowx(`INSERT INTO automation_runs (id, invoice_id, po_id, status, details, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+runColumns,
		run.ID, run.InvoiceID, run.POID, run.Status, run.Details, run.StartedAt, run.CompletedAt).StructScan(&saved)
	if err != nil {
		return models.AutomationRun{}, fmt.Errorf("save automation run: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) GetAutomationRun(id string) (models.AutomationRun, error) {
	var run models.AutomationRun
	err := s.db.Get(&run, "SELECT "+runColumns+" FROM automation_runs WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.AutomationRun{}, storage.ErrNotFound
	}
	if err != nil {
		return models.AutomationRun{}, fmt.Errorf("get automation run %s: %w", id, err)
	}
	return run, nil
}

func (s *PostgresStore) UpdateAutomationRun(id string, patch storage.RunPatch) (models.AutomationRun, error) {
	var run models.AutomationRun
	err := s.db.QueryRowx(`
		UPDATE automation_runs
		SET status = $1,
		    po_id = COALESCE($2, po_id),
		    details = COALESCE($3, details),
		    completed_at = $4
		WHERE id = $5
		RETURNING `+runColumns,
		patch.Status, patch.POID, patch.Details, patch.CompletedAt, id).StructScan(&run)
	if err == sql.ErrNoRows {
		return models.AutomationRun{}, storage.ErrNotFound
	}
	if err != nil {
		return models.AutomationRun{}, fmt.Errorf("update automation run %s: %w", id, err)
	}
	return run, nil
}

// runRow joins the source invoice summary onto a run.
type runRow struct {
	models.AutomationRun
	InvVendor *string  `db:"inv_vendor"`
	InvTotal  *float64 `db:"inv_total"`
	InvStatus *string  `db:"inv_status"`
}

func (s *PostgresStore) ListAutomationRuns(f storage.RunFilter) ([]models.AutomationRun, error) {
	query := `SELECT r.id, r.invoice_id, r.po_id, r.status, r.details, r.started_at, r.completed_at,
		i.vendor AS inv_vendor, i.total AS inv_total, i.status AS inv_status
		FROM automation_runs r
		LEFT JOIN invoices i ON i.id = r.invoice_id`
	args := []interface{}{}
	if f.Status != "" {
		query += " WHERE r.status = $1"
		args = append(args, f.Status)
	}
	query += " ORDER BY r.started_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows := []runRow{}
	if err := s.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("list automation runs: %w", err)
	}
	runs := make([]models.AutomationRun, 0, len(rows))
	for _, r := range rows {
		run := r.AutomationRun
		if r.InvVendor != nil {
			run.Invoice = &models.RunInvoice{
				ID:     run.InvoiceID,
				Vendor: *r.InvVendor,
				Total:  *r.InvTotal,
				Status: models.InvoiceStatus(*r.InvStatus),
			}
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (s *PostgresStore) ListRunsForInvoice(invoiceID string) ([]models.AutomationRun, error) {
	runs := []models.AutomationRun{}
	err := s.db.Select(&runs, "SELECT "+runColumns+" FROM automation_runs WHERE invoice_id = $1 ORDER BY started_at DESC", invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list runs for invoice %s: %w", invoiceID, err)
	}
	return runs, nil
}

const logColumns = "id, entity_type, entity_id, action, details, timestamp, purchase_order_id"

// AppendActivityLog inserts one audit entry. There is no update or delete
// path for the log; Reset is the only way entries go away.
func (s *PostgresStore) AppendActivityLog(entry models.ActivityLog) (models.ActivityLog, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	var saved models.ActivityLog
	err := s.db.QueryRowx(`INSERT INTO activity_logs (id, entity_type, entity_id, action, details, timestamp, purchase_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+logColumns,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.Details, entry.Timestamp, entry.PurchaseOrderID).StructScan(&saved)
	if err != nil {
		return models.ActivityLog{}, fmt.Errorf("append activity log: %w", err)
	}
	return saved, nil
}

// logRow joins the referenced purchase order's vendor onto a log entry.
type logRow struct {
	models.ActivityLog
	POVendor *string `db:"po_vendor"`
}

func (s *PostgresStore) ListActivityLogs(f storage.LogFilter) ([]models.ActivityLog, error) {
	query := `SELECT l.id, l.entity_type, l.entity_id, l.action, l.details, l.timestamp, l.purchase_order_id,
		p.vendor AS po_vendor
		FROM activity_logs l
		LEFT JOIN purchase_orders p ON p.id = l.purchase_order_id
		ORDER BY l.timestamp DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows := []logRow{}
	if err := s.db.Select(&rows, query); err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	logs := make([]models.ActivityLog, 0, len(rows))
	for _, r := range rows {
		entry := r.ActivityLog
		if r.POVendor != nil {
			entry.PurchaseOrder = &models.ActivityLogPO{Vendor: *r.POVendor}
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

func (s *PostgresStore) ListLogsForPurchaseOrder(poID string, limit int) ([]models.ActivityLog, error) {
	query := "SELECT " + logColumns + " FROM activity_logs WHERE purchase_order_id = $1 ORDER BY timestamp DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	logs := []models.ActivityLog{}
	if err := s.db.Select(&logs, query, poID); err != nil {
		return nil, fmt.Errorf("list logs for purchase order %s: %w", poID, err)
	}
	return logs, nil
}

// Reset clears all entities in dependency order. Used only by demo seeding.
func (s *PostgresStore) Reset() error {
	for _, table := range []string{"automation_runs", "activity_logs", "invoices", "purchase_orders"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}
