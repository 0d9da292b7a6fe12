package service_test

import (
	"testing"

	"github.com/procurehq/potrack/pkg/events"
	"github.com/procurehq/potrack/pkg/models"
	"github.com/procurehq/potrack/pkg/service"
	"github.com/procurehq/potrack/pkg/storage"
	"github.com/stretchr/testify/assert"
)

func newPOFixture() (*service.POService, *storage.MockStore, *events.Bus) {
	store := storage.NewMockStore()
	bus := events.NewBus(logger{})
	return service.NewPOService(store, bus, logger{}), store, bus
}

func TestPOServiceCreate(t *testing.T) {
	t.Run("WithRequest", func(t *testing.T) {
		svc, store, bus := newPOFixture()

		var created int
		bus.Subscribe(events.TopicPOCreated, func(interface{}) { created++ })

		po, err := svc.Create(&service.CreatePORequest{
			Vendor: "Acme Supplies Co.",
			Items:  []models.LineItem{models.NewLineItem("Widget", 5, 25.0)},
			Total:  125.00,
		})
		assert.NoError(t, err)
		assert.Equal(t, "Acme Supplies Co.", po.Vendor)
		assert.Equal(t, models.POStatusPending, po.Status)
		assert.Equal(t, 1, created)

		// Creation is paired with exactly one "created" audit entry.
		logs, err := store.ListLogsForPurchaseOrder(po.ID, 0)
		assert.NoError(t, err)
		if assert.Len(t, logs, 1) {
			assert.Equal(t, models.ActionCreated, logs[0].Action)
		}
	})

	t.Run("Random", func(t *testing.T) {
		svc, _, _ := newPOFixture()
		po, err := svc.Create(nil)
		assert.NoError(t, err)
		assert.NotEmpty(t, po.Vendor)
		assert.Equal(t, models.POStatusPending, po.Status)
	})

	t.Run("InvalidItem", func(t *testing.T) {
		svc, store, _ := newPOFixture()
		_, err := svc.Create(&service.CreatePORequest{
			Vendor: "Acme Supplies Co.",
			Items:  []models.LineItem{{Name: "Widget", Quantity: -1, UnitPrice: 5, Total: -5}},
		})
		assert.Error(t, err)

		pos, err := store.ListPurchaseOrders(storage.POFilter{})
		assert.NoError(t, err)
		assert.Empty(t, pos)
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		svc, _, _ := newPOFixture()
		_, err := svc.Create(&service.CreatePORequest{
			Vendor: "Acme Supplies Co.",
			Items:  []models.LineItem{models.NewLineItem("Widget", 1, 10)},
			Total:  10,
			Status: "shipped",
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid purchase order status")
	})
}

func TestPOServiceUpdate(t *testing.T) {
	t.Run("StatusChangeAppendsAudit", func(t *testing.T) {
		svc, store, bus := newPOFixture()

		var statusEvents []service.POStatusChangeEvent
		bus.Subscribe(events.TopicPOStatusChanged, func(payload interface{}) {
			statusEvents = append(statusEvents, payload.(service.POStatusChangeEvent))
		})

		po, err := svc.Create(&service.CreatePORequest{
			Vendor: "Acme Supplies Co.",
			Items:  []models.LineItem{models.NewLineItem("Widget", 1, 10)},
			Total:  10,
		})
		assert.NoError(t, err)

		ordered := models.POStatusOrdered
		updated, err := svc.Update(po.ID, service.UpdatePORequest{Status: &ordered})
		assert.NoError(t, err)
		assert.Equal(t, models.POStatusOrdered, updated.Status)

		// One created + one status_changed, nothing else.
		logs, err := store.ListLogsForPurchaseOrder(po.ID, 0)
		assert.NoError(t, err)
		if assert.Len(t, logs, 2) {
			assert.Equal(t, models.ActionStatusChanged, logs[0].Action)
			if assert.NotNil(t, logs[0].Details) {
				assert.Contains(t, *logs[0].Details, `"from":"pending"`)
				assert.Contains(t, *logs[0].Details, `"to":"ordered"`)
			}
		}

		if assert.Len(t, statusEvents, 1) {
			assert.Equal(t, models.POStatusPending, statusEvents[0].From)
			assert.Equal(t, models.POStatusOrdered, statusEvents[0].To)
		}
	})

	t.Run("SameStatusIsNotAChange", func(t *testing.T) {
		svc, store, bus := newPOFixture()

		var updatedEvents, statusEvents int
		bus.Subscribe(events.TopicPOUpdated, func(interface{}) { updatedEvents++ })
		bus.Subscribe(events.TopicPOStatusChanged, func(interface{}) { statusEvents++ })

		po, err := svc.Create(&service.CreatePORequest{
			Vendor: "Acme Supplies Co.",
			Items:  []models.LineItem{models.NewLineItem("Widget", 1, 10)},
			Total:  10,
		})
		assert.NoError(t, err)

		pending := models.POStatusPending
		_, err = svc.Update(po.ID, service.UpdatePORequest{Status: &pending})
		assert.NoError(t, err)

		logs, err := store.ListLogsForPurchaseOrder(po.ID, 0)
		assert.NoError(t, err)
		assert.Len(t, logs, 1) // only the creation entry

		assert.Equal(t, 1, updatedEvents)
		assert.Zero(t, statusEvents)
	})

	t.Run("VendorOnly", func(t *testing.T) {
		svc, _, _ := newPOFixture()

		po, err := svc.Create(&service.CreatePORequest{
			Vendor: "Acme Supplies Co.",
			Items:  []models.LineItem{models.NewLineItem("Widget", 1, 10)},
			Total:  10,
		})
		assert.NoError(t, err)

		vendor := "Global Parts Ltd."
		updated, err := svc.Update(po.ID, service.UpdatePORequest{Vendor: &vendor})
		assert.NoError(t, err)
		assert.Equal(t, "Global Parts Ltd.", updated.Vendor)
		assert.Equal(t, po.Status, updated.Status)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc, _, _ := newPOFixture()
		vendor := "x"
		_, err := svc.Update("missing", service.UpdatePORequest{Vendor: &vendor})
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		svc, _, _ := newPOFixture()
		po, err := svc.Create(&service.CreatePORequest{
			Vendor: "Acme Supplies Co.",
			Items:  []models.LineItem{models.NewLineItem("Widget", 1, 10)},
			Total:  10,
		})
		assert.NoError(t, err)

		bogus := models.POStatus("shipped")
		_, err = svc.Update(po.ID, service.UpdatePORequest{Status: &bogus})
		assert.Error(t, err)
	})
}

func TestPOServiceGetAndList(t *testing.T) {
	svc, _, _ := newPOFixture()

	first, err := svc.Create(&service.CreatePORequest{
		Vendor: "Acme Supplies Co.",
		Items:  []models.LineItem{models.NewLineItem("Widget", 1, 10)},
		Total:  10,
	})
	assert.NoError(t, err)

	got, err := svc.Get(first.ID)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Len(t, got.ActivityLogs, 1)

	_, err = svc.Get("missing")
	assert.ErrorIs(t, err, service.ErrNotFound)

	// Walk through every transition; Get returns the full history.
	for _, status := range []models.POStatus{models.POStatusOrdered, models.POStatusDelivered, models.POStatusReceived} {
		status := status
		_, err = svc.Update(first.ID, service.UpdatePORequest{Status: &status})
		assert.NoError(t, err)
	}
	got, err = svc.Get(first.ID)
	assert.NoError(t, err)
	assert.Len(t, got.ActivityLogs, 4)

	// List caps each order's history at 5 entries.
	pos, err := svc.List()
	assert.NoError(t, err)
	if assert.Len(t, pos, 1) {
		assert.LessOrEqual(t, len(pos[0].ActivityLogs), 5)
	}
}
