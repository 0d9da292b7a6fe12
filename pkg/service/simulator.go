package service

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/procurehq/potrack/pkg/events"
	"github.com/procurehq/potrack/pkg/models"
	"github.com/procurehq/potrack/pkg/storage"
)

// SimulatorService advances one randomly chosen non-terminal purchase order
// by exactly one status step per invocation. It exercises the status model
// and the audit trail but has no automation semantics of its own.
type SimulatorService struct {
	store  storage.Store
	bus    *events.Bus
	logger Logger
}

func NewSimulatorService(store storage.Store, bus *events.Bus, logger Logger) *SimulatorService {
	return &SimulatorService{store: store, bus: bus, logger: logger}
}

// AdvanceResult reports what the simulator did.
type AdvanceResult struct {
	Message       string                `json:"message"`
	PurchaseOrder *models.PurchaseOrder `json:"purchaseOrder,omitempty"`
	From          models.POStatus       `json:"from,omitempty"`
	To            models.POStatus       `json:"to,omitempty"`
}

// Advance picks a random purchase order whose status is not "received" and
// moves it one step forward, appending the status_changed audit entry and
// publishing the change. When nothing is eligible it reports so without error.
func (s *SimulatorService) Advance() (result *AdvanceResult, err error) {
	eligible, err := s.store.ListPurchaseOrders(storage.POFilter{ExcludeStatus: models.POStatusReceived})
	if err != nil {
		return nil, errors.Wrap(err, "list purchase orders")
	}
	if len(eligible) == 0 {
		return &AdvanceResult{Message: "No POs available to advance"}, nil
	}

	picked := eligible[rand.Intn(len(eligible))]
	next, ok := models.NextPOStatus(picked.Status)
	if !ok {
		// The filter should make this unreachable; checked anyway so a bad
		// row never mutates state.
		return &AdvanceResult{Message: "Selected PO cannot be advanced"}, nil
	}

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

	updated, err := txStore.UpdatePurchaseOrder(picked.ID, storage.POPatch{Status: &next})
	if err != nil {
		return nil, errors.Wrap(err, "update purchase order")
	}
	if _, err = txStore.AppendActivityLog(models.ActivityLog{
		EntityType:      models.EntityTypePurchaseOrder,
		EntityID:        picked.ID,
		Action:          models.ActionStatusChanged,
		Details:         models.DetailsString(models.StatusChangeDetails{From: picked.Status, To: next}),
		PurchaseOrderID: &picked.ID,
	}); err != nil {
		return nil, errors.Wrap(err, "append activity log")
	}

	s.bus.Publish(events.TopicPOStatusChanged, POStatusChangeEvent{
		PurchaseOrder: updated,
		From:          picked.Status,
		To:            next,
	})

	s.logger.Infof("Simulator advanced purchase order %s from %s to %s", picked.ID, picked.Status, next)
	return &AdvanceResult{
		Message:       "PO status advanced",
		PurchaseOrder: &updated,
		From:          picked.Status,
		To:            next,
	}, nil
}
