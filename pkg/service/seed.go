package service

import (
	"time"

	"github.com/pkg/errors"
	"github.com/procurehq/potrack/pkg/generator"
	"github.com/procurehq/potrack/pkg/models"
	"github.com/procurehq/potrack/pkg/storage"
)

const (
	seedPOCount      = 15
	seedInvoiceCount = 12
	seedLinkedCount  = 6
)

// SeedService resets the store and fills it with demo data: purchase orders
// spread over the past week with a consistent audit trail, and invoices in a
// mix of states, the first few already processed with recorded success runs.
type SeedService struct {
	store  storage.Store
	logger Logger
}

func NewSeedService(store storage.Store, logger Logger) *SeedService {
	return &SeedService{store: store, logger: logger}
}

// Seed performs the bulk reset and reseed. This is the only path that ever
// deletes activity log or automation run entries.
func (s *SeedService) Seed() error {
	if err := s.store.Reset(); err != nil {
		return errors.Wrap(err, "reset store")
	}

	statuses := models.POStatuses()
	now := time.Now()

	for i := 0; i < seedPOCount; i++ {
		items := generator.RandomLineItems(generator.RandInt(1, 4))
		encoded, err := models.EncodeLineItems(items)
		if err != nil {
			return err
		}
		status := statuses[generator.RandInt(0, len(statuses)-1)]
		createdAt := now.Add(-time.Duration(generator.RandInt(0, 7)) * 24 * time.Hour)

		po, err := s.store.SavePurchaseOrder(models.PurchaseOrder{
			Vendor:    generator.RandomVendor(),
			Items:     encoded,
			Total:     models.SumLineItems(items),
			Status:    status,
			CreatedAt: createdAt,
		})
		if err != nil {
			return errors.Wrap(err, "seed purchase order")
		}

		if _, err := s.store.AppendActivityLog(models.ActivityLog{
			EntityType:      models.EntityTypePurchaseOrder,
			EntityID:        po.ID,
			Action:          models.ActionCreated,
			Details:         models.DetailsString(models.CreationDetails{Vendor: po.Vendor, Total: po.Total}),
			Timestamp:       createdAt,
			PurchaseOrderID: &po.ID,
		}); err != nil {
			return errors.Wrap(err, "seed activity log")
		}

		// One status_changed entry per step already taken, an hour apart.
		statusIndex := 0
		for j, st := range statuses {
			if st == po.Status {
				statusIndex = j
			}
		}
		for j := 1; j <= statusIndex; j++ {
			if _, err := s.store.AppendActivityLog(models.ActivityLog{
				EntityType:      models.EntityTypePurchaseOrder,
				EntityID:        po.ID,
				Action:          models.ActionStatusChanged,
				Details:         models.DetailsString(models.StatusChangeDetails{From: statuses[j-1], To: statuses[j]}),
				Timestamp:       createdAt.Add(time.Duration(j) * time.Hour),
				PurchaseOrderID: &po.ID,
			}); err != nil {
				return errors.Wrap(err, "seed activity log")
			}
		}

		s.logger.Infof("Seeded PO %s - %s - $%.2f - %s", po.ID, po.Vendor, po.Total, po.Status)
	}

	linkable, err := s.store.ListPurchaseOrders(storage.POFilter{})
	if err != nil {
		return errors.Wrap(err, "list purchase orders")
	}

	for i := 0; i < seedInvoiceCount; i++ {
		items := generator.RandomLineItems(generator.RandInt(1, 4))
		encoded, err := models.EncodeLineItems(items)
		if err != nil {
			return err
		}
		createdAt := now.Add(-time.Duration(generator.RandInt(0, 10)) * 24 * time.Hour)

		inv := models.Invoice{
			Vendor:    generator.RandomVendor(),
			LineItems: encoded,
			Total:     models.SumLineItems(items),
			Status:    models.InvoiceStatusUnprocessed,
			CreatedAt: createdAt,
		}
		// Every third unlinked invoice seeds as failed, for dashboard variety.
		var linkedPO *models.PurchaseOrder
		if i < seedLinkedCount && i < len(linkable) {
			linkedPO = &linkable[i]
			inv.Vendor = linkedPO.Vendor
			inv.Total = linkedPO.Total
			inv.Status = models.InvoiceStatusProcessed
			inv.LinkedPOID = &linkedPO.ID
		} else if i%3 == 2 {
			inv.Status = models.InvoiceStatusFailed
		}

		inv, err = s.store.SaveInvoice(inv)
		if err != nil {
			return errors.Wrap(err, "seed invoice")
		}

		switch {
		case linkedPO != nil:
			startedAt := createdAt.Add(time.Duration(generator.RandInt(1, 30)) * time.Minute)
			completedAt := startedAt.Add(time.Duration(generator.RandInt(1, 5)) * time.Second)
			if _, err := s.store.SaveAutomationRun(models.AutomationRun{
				InvoiceID:   inv.ID,
				POID:        &linkedPO.ID,
				Status:      models.RunStatusSuccess,
				Details:     models.DetailsString(models.RunSuccessDetails{Vendor: inv.Vendor, Total: inv.Total, ItemCount: len(items)}),
				StartedAt:   startedAt,
				CompletedAt: &completedAt,
			}); err != nil {
				return errors.Wrap(err, "seed automation run")
			}
		case inv.Status == models.InvoiceStatusFailed:
			startedAt := createdAt.Add(time.Duration(generator.RandInt(1, 30)) * time.Minute)
			completedAt := startedAt.Add(2 * time.Second)
			if _, err := s.store.SaveAutomationRun(models.AutomationRun{
				InvoiceID:   inv.ID,
				Status:      models.RunStatusFailed,
				Details:     models.DetailsString(models.RunFailureDetails{Error: "Vendor not found in approved vendor list"}),
				StartedAt:   startedAt,
				CompletedAt: &completedAt,
			}); err != nil {
				return errors.Wrap(err, "seed automation run")
			}
		}

		s.logger.Infof("Seeded invoice %s - %s - $%.2f - %s", inv.ID, inv.Vendor, inv.Total, inv.Status)
	}

	s.logger.Infof("Seeding complete")
	return nil
}
