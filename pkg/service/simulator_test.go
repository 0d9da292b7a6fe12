package service_test

import (
	"testing"

	"github.com/procurehq/potrack/pkg/events"
	"github.com/procurehq/potrack/pkg/models"
	"github.com/procurehq/potrack/pkg/service"
	"github.com/procurehq/potrack/pkg/storage"
	"github.com/stretchr/testify/assert"
)

func TestSimulatorAdvance(t *testing.T) {
	t.Run("EmptyStore", func(t *testing.T) {
		store := storage.NewMockStore()
		svc := service.NewSimulatorService(store, events.NewBus(logger{}), logger{})

		result, err := svc.Advance()
		assert.NoError(t, err)
		assert.Equal(t, "No POs available to advance", result.Message)
		assert.Nil(t, result.PurchaseOrder)
	})

	t.Run("AllReceived", func(t *testing.T) {
		store := storage.NewMockStore()
		svc := service.NewSimulatorService(store, events.NewBus(logger{}), logger{})

		_, err := store.SavePurchaseOrder(models.PurchaseOrder{
			Vendor: "Acme Supplies Co.", Items: "[]", Status: models.POStatusReceived,
		})
		assert.NoError(t, err)

		result, err := svc.Advance()
		assert.NoError(t, err)
		assert.Equal(t, "No POs available to advance", result.Message)
	})

	t.Run("AdvancesOneStep", func(t *testing.T) {
		store := storage.NewMockStore()
		bus := events.NewBus(logger{})
		svc := service.NewSimulatorService(store, bus, logger{})

		var changes []service.POStatusChangeEvent
		bus.Subscribe(events.TopicPOStatusChanged, func(payload interface{}) {
			changes = append(changes, payload.(service.POStatusChangeEvent))
		})

		po, err := store.SavePurchaseOrder(models.PurchaseOrder{
			Vendor: "Acme Supplies Co.", Items: "[]", Status: models.POStatusOrdered,
		})
		assert.NoError(t, err)

		result, err := svc.Advance()
		assert.NoError(t, err)
		assert.Equal(t, "PO status advanced", result.Message)
		assert.Equal(t, models.POStatusOrdered, result.From)
		assert.Equal(t, models.POStatusDelivered, result.To)
		if assert.NotNil(t, result.PurchaseOrder) {
			assert.Equal(t, po.ID, result.PurchaseOrder.ID)
			assert.Equal(t, models.POStatusDelivered, result.PurchaseOrder.Status)
		}

		// The advance is audited and published.
		logs, err := store.ListLogsForPurchaseOrder(po.ID, 0)
		assert.NoError(t, err)
		if assert.Len(t, logs, 1) {
			assert.Equal(t, models.ActionStatusChanged, logs[0].Action)
		}
		assert.Len(t, changes, 1)
	})

	t.Run("EventuallyTerminal", func(t *testing.T) {
		store := storage.NewMockStore()
		svc := service.NewSimulatorService(store, events.NewBus(logger{}), logger{})

		po, err := store.SavePurchaseOrder(models.PurchaseOrder{
			Vendor: "Acme Supplies Co.", Items: "[]", Status: models.POStatusPending,
		})
		assert.NoError(t, err)

		// pending -> ordered -> delivered -> received, then nothing left.
		for i := 0; i < 3; i++ {
			result, err := svc.Advance()
			assert.NoError(t, err)
			assert.Equal(t, "PO status advanced", result.Message)
		}
		result, err := svc.Advance()
		assert.NoError(t, err)
		assert.Equal(t, "No POs available to advance", result.Message)

		final, err := store.GetPurchaseOrder(po.ID)
		assert.NoError(t, err)
		assert.Equal(t, models.POStatusReceived, final.Status)
	})
}
