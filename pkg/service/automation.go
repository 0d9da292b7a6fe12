package service

import (
	"time"

	"github.com/pkg/errors"
	"github.com/procurehq/potrack/pkg/events"
	"github.com/procurehq/potrack/pkg/models"
	"github.com/procurehq/potrack/pkg/storage"
)

// AutomationService converts invoices into purchase orders with an auditable
// success or failure outcome per attempt, recorded as an AutomationRun.
type AutomationService struct {
	store  storage.Store
	bus    *events.Bus
	logger Logger
}

func NewAutomationService(store storage.Store, bus *events.Bus, logger Logger) *AutomationService {
	return &AutomationService{store: store, bus: bus, logger: logger}
}

// GenerateResult is returned to the caller on a successful run.
type GenerateResult struct {
	Invoice       models.Invoice       `json:"invoice"`
	PurchaseOrder models.PurchaseOrder `json:"purchaseOrder"`
	AutomationRun models.RunSummary    `json:"automationRun"`
}

// GeneratePurchaseOrder runs the invoice-to-PO workflow:
//
//  1. claim the invoice (conditional unprocessed/failed -> processing update;
//     the claim is the per-invoice mutual exclusion and is externally visible
//     before derivation starts)
//  2. open an AutomationRun in "processing"
//  3. parse the invoice line items and create the purchase order
//  4. append the created_from_invoice audit entry
//  5. mark the invoice processed + linked and close the run as success
//  6. publish the po:created event
//
// Steps 3-5 share one store transaction. Any failure there takes the
// compensating path: invoice -> failed, run -> failed with the error recorded,
// and the caller gets an AutomationError. Retrying a failed invoice is the
// designed recovery; the engine itself never retries.
func (s *AutomationService) GeneratePurchaseOrder(invoiceID string) (*GenerateResult, error) {
	startedAt := time.Now()

	inv, err := s.store.GetInvoice(invoiceID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "invoice %s", invoiceID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetch invoice")
	}

	if inv.Status == models.InvoiceStatusProcessed && inv.LinkedPOID != nil {
		return nil, errors.Wrap(ErrConflict, "invoice already has a linked purchase order")
	}

	// Step 1
	inv, err = s.store.ClaimInvoice(invoiceID)
	if errors.Is(err, storage.ErrClaimRejected) {
		return nil, errors.Wrap(ErrConflict, "invoice is not in a claimable status")
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "invoice %s", invoiceID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "claim invoice")
	}

	// Step 2. The run commits before derivation so the in-flight attempt is
	// observable; a process crash from here on leaves it in "processing".
	run, err := s.store.SaveAutomationRun(models.AutomationRun{
		InvoiceID: invoiceID,
		Status:    models.RunStatusProcessing,
		StartedAt: startedAt,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open automation run")
	}

	result, deriveErr := s.derive(inv, run)
	if deriveErr != nil {
		s.recordFailure(invoiceID, run.ID, deriveErr)
		s.logger.Errorf("Automation failed for invoice %s (run %s): %v", invoiceID, run.ID, deriveErr)
		return nil, &AutomationError{RunID: run.ID, Message: deriveErr.Error()}
	}

	// Step 6
	s.bus.Publish(events.TopicPOCreated, result.PurchaseOrder)

	s.logger.Infof("Generated purchase order %s from invoice %s in %dms",
		result.PurchaseOrder.ID, invoiceID, result.AutomationRun.Duration)
	return result, nil
}

// derive performs steps 3-5 inside a single transaction.
func (s *AutomationService) derive(inv models.Invoice, run models.AutomationRun) (result *GenerateResult, err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
			result = nil
		}
	}()

	// Step 3
	items, err := models.ParseLineItems(inv.LineItems)
	if err != nil {
		return nil, err
	}
	encoded, err := models.EncodeLineItems(items)
	if err != nil {
		return nil, err
	}
	po, err := txStore.SavePurchaseOrder(models.PurchaseOrder{
		Vendor: inv.Vendor,
		Items:  encoded,
		Total:  inv.Total,
		Status: models.POStatusPending,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create purchase order")
	}

	// Step 4
	if _, err = txStore.AppendActivityLog(models.ActivityLog{
		EntityType:      models.EntityTypePurchaseOrder,
		EntityID:        po.ID,
		Action:          models.ActionCreatedFromInvoice,
		Details:         models.DetailsString(models.GenerationDetails{InvoiceID: inv.ID, Vendor: po.Vendor, Total: po.Total}),
		PurchaseOrderID: &po.ID,
	}); err != nil {
		return nil, errors.Wrap(err, "append activity log")
	}

	completedAt := time.Now()

	// Step 5
	processed := models.InvoiceStatusProcessed
	updatedInv, err := txStore.UpdateInvoice(inv.ID, storage.InvoicePatch{Status: &processed, LinkedPOID: &po.ID})
	if err != nil {
		return nil, errors.Wrap(err, "mark invoice processed")
	}

	updatedRun, err := txStore.UpdateAutomationRun(run.ID, storage.RunPatch{
		Status:      models.RunStatusSuccess,
		POID:        &po.ID,
		Details:     models.DetailsString(models.RunSuccessDetails{Vendor: po.Vendor, Total: po.Total, ItemCount: len(items)}),
		CompletedAt: completedAt,
	})
	if err != nil {
		return nil, errors.Wrap(err, "close automation run")
	}

	return &GenerateResult{
		Invoice:       updatedInv,
		PurchaseOrder: po,
		AutomationRun: models.RunSummary{
			ID:          updatedRun.ID,
			Status:      updatedRun.Status,
			StartedAt:   run.StartedAt,
			CompletedAt: completedAt,
			Duration:    completedAt.Sub(run.StartedAt).Milliseconds(),
		},
	}, nil
}

// recordFailure takes the compensating path: invoice to "failed" and the run
// to its terminal "failed" state with the error message recorded. The
// invoice's linked PO id is deliberately left as-is, matching the observed
// behavior this engine preserves: the conflict guard keeps a previously
// linked invoice from re-entering the workflow, so a stale link is unreachable.
func (s *AutomationService) recordFailure(invoiceID, runID string, cause error) {
	failed := models.InvoiceStatusFailed
	if _, err := s.store.UpdateInvoice(invoiceID, storage.InvoicePatch{Status: &failed}); err != nil {
		s.logger.Errorf("Failed to mark invoice %s as failed: %v", invoiceID, err)
	}
	if _, err := s.store.UpdateAutomationRun(runID, storage.RunPatch{
		Status:      models.RunStatusFailed,
		Details:     models.DetailsString(models.RunFailureDetails{Error: cause.Error()}),
		CompletedAt: time.Now(),
	}); err != nil {
		s.logger.Errorf("Failed to mark automation run %s as failed: %v", runID, err)
	}
}
