package service

import (
	"github.com/pkg/errors"
	"github.com/procurehq/potrack/pkg/events"
	"github.com/procurehq/potrack/pkg/generator"
	"github.com/procurehq/potrack/pkg/models"
	"github.com/procurehq/potrack/pkg/storage"
)

// POStatusChangeEvent is published on TopicPOStatusChanged.
type POStatusChangeEvent struct {
	PurchaseOrder models.PurchaseOrder `json:"purchaseOrder"`
	From          models.POStatus      `json:"from"`
	To            models.POStatus      `json:"to"`
}

// POService handles direct purchase order reads and mutations. Every
// mutation through it is paired with exactly one activity log entry.
type POService struct {
	store  storage.Store
	bus    *events.Bus
	logger Logger
}

func NewPOService(store storage.Store, bus *events.Bus, logger Logger) *POService {
	return &POService{store: store, bus: bus, logger: logger}
}

// CreatePORequest carries the fields of a manual purchase order creation.
type CreatePORequest struct {
	Vendor string            `json:"vendor"`
	Items  []models.LineItem `json:"items"`
	Total  float64           `json:"total"`
	Status models.POStatus   `json:"status"`
}

// Create stores a new purchase order and its "created" audit entry. A nil
// request creates a randomly generated demo order.
func (s *POService) Create(req *CreatePORequest) (po models.PurchaseOrder, err error) {
	if req == nil {
		po, err = generator.RandomPurchaseOrder()
		if err != nil {
			return models.PurchaseOrder{}, err
		}
	} else {
		for _, li := range req.Items {
			if err := li.Validate(); err != nil {
				return models.PurchaseOrder{}, err
			}
		}
		encoded, err := models.EncodeLineItems(req.Items)
		if err != nil {
			return models.PurchaseOrder{}, err
		}
		status := req.Status
		if status == "" {
			status = models.POStatusPending
		}
		if !models.ValidPOStatus(status) {
			return models.PurchaseOrder{}, errors.Errorf("invalid purchase order status %q", status)
		}
		po = models.PurchaseOrder{
			Vendor: req.Vendor,
			Items:  encoded,
			Total:  models.Round2(req.Total),
			Status: status,
		}
	}

	txStore, err := s.store.Begin()
	if err != nil {
		return models.PurchaseOrder{}, errors.Wrap(err, "begin transaction")
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
		}
	}()

	po, err = txStore.SavePurchaseOrder(po)
	if err != nil {
		return models.PurchaseOrder{}, errors.Wrap(err, "save purchase order")
	}
	if _, err = txStore.AppendActivityLog(models.ActivityLog{
		EntityType:      models.EntityTypePurchaseOrder,
		EntityID:        po.ID,
		Action:          models.ActionCreated,
		Details:         models.DetailsString(models.CreationDetails{Vendor: po.Vendor, Total: po.Total}),
		PurchaseOrderID: &po.ID,
	}); err != nil {
		return models.PurchaseOrder{}, errors.Wrap(err, "append activity log")
	}

	s.bus.Publish(events.TopicPOCreated, po)
	s.logger.Infof("Created purchase order %s for vendor %q", po.ID, po.Vendor)
	return po, nil
}

// Get returns a purchase order with its full activity history, newest first.
func (s *POService) Get(id string) (models.PurchaseOrder, error) {
	po, err := s.store.GetPurchaseOrder(id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.PurchaseOrder{}, errors.Wrapf(ErrNotFound, "purchase order %s", id)
	}
	if err != nil {
		return models.PurchaseOrder{}, err
	}
	logs, err := s.store.ListLogsForPurchaseOrder(id, 0)
	if err != nil {
		return models.PurchaseOrder{}, errors.Wrap(err, "list activity logs")
	}
	po.ActivityLogs = logs
	return po, nil
}

// List returns all purchase orders newest first, each with its five most
// recent activity entries.
func (s *POService) List() ([]models.PurchaseOrder, error) {
	pos, err := s.store.ListPurchaseOrders(storage.POFilter{})
	if err != nil {
		return nil, err
	}
	for i := range pos {
		logs, err := s.store.ListLogsForPurchaseOrder(pos[i].ID, 5)
		if err != nil {
			return nil, errors.Wrap(err, "list activity logs")
		}
		pos[i].ActivityLogs = logs
	}
	return pos, nil
}

// UpdatePORequest carries a partial purchase order update.
type UpdatePORequest struct {
	Vendor *string            `json:"vendor"`
	Items  *[]models.LineItem `json:"items"`
	Total  *float64           `json:"total"`
	Status *models.POStatus   `json:"status"`
}

// Update applies a partial update. A status change is paired with exactly one
// "status_changed" audit entry capturing {from, to} and publishes
// po:status_changed; any other change publishes po:updated.
func (s *POService) Update(id string, req UpdatePORequest) (updated models.PurchaseOrder, err error) {
	current, err := s.store.GetPurchaseOrder(id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.PurchaseOrder{}, errors.Wrapf(ErrNotFound, "purchase order %s", id)
	}
	if err != nil {
		return models.PurchaseOrder{}, err
	}

	patch := storage.POPatch{Vendor: req.Vendor}
	if req.Status != nil {
		if !models.ValidPOStatus(*req.Status) {
			return models.PurchaseOrder{}, errors.Errorf("invalid purchase order status %q", *req.Status)
		}
		patch.Status = req.Status
	}
	if req.Items != nil {
		for _, li := range *req.Items {
			if err := li.Validate(); err != nil {
				return models.PurchaseOrder{}, err
			}
		}
		encoded, err := models.EncodeLineItems(*req.Items)
		if err != nil {
			return models.PurchaseOrder{}, err
		}
		patch.Items = &encoded
	}
	if req.Total != nil {
		rounded := models.Round2(*req.Total)
		patch.Total = &rounded
	}

	statusChanged := patch.Status != nil && *patch.Status != current.Status

	txStore, err := s.store.Begin()
	if err != nil {
		return models.PurchaseOrder{}, errors.Wrap(err, "begin transaction")
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
		}
	}()

	updated, err = txStore.UpdatePurchaseOrder(id, patch)
	if err != nil {
		return models.PurchaseOrder{}, errors.Wrap(err, "update purchase order")
	}
	if statusChanged {
		if _, err = txStore.AppendActivityLog(models.ActivityLog{
			EntityType:      models.EntityTypePurchaseOrder,
			EntityID:        id,
			Action:          models.ActionStatusChanged,
			Details:         models.DetailsString(models.StatusChangeDetails{From: current.Status, To: updated.Status}),
			PurchaseOrderID: &updated.ID,
		}); err != nil {
			return models.PurchaseOrder{}, errors.Wrap(err, "append activity log")
		}
	}

	if statusChanged {
		s.bus.Publish(events.TopicPOStatusChanged, POStatusChangeEvent{
			PurchaseOrder: updated,
			From:          current.Status,
			To:            updated.Status,
		})
	} else {
		s.bus.Publish(events.TopicPOUpdated, updated)
	}
	return updated, nil
}
