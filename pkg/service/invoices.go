package service

import (
	"github.com/pkg/errors"
	"github.com/procurehq/potrack/pkg/generator"
	"github.com/procurehq/potrack/pkg/models"
	"github.com/procurehq/potrack/pkg/storage"
)

// InvoiceService handles invoice reads and direct edits. The automation
// workflow owns the processing/processed/failed transitions; this service
// covers creation and manual patches.
type InvoiceService struct {
	store  storage.Store
	logger Logger
}

func NewInvoiceService(store storage.Store, logger Logger) *InvoiceService {
	return &InvoiceService{store: store, logger: logger}
}

// CreateInvoiceRequest carries the fields of a manual invoice creation.
type CreateInvoiceRequest struct {
	Vendor     string               `json:"vendor"`
	LineItems  []models.LineItem    `json:"lineItems"`
	Total      float64              `json:"total"`
	Status     models.InvoiceStatus `json:"status"`
	LinkedPOID *string              `json:"linkedPOId"`
}

// Create stores a new invoice. A nil request creates a randomly generated one.
func (s *InvoiceService) Create(req *CreateInvoiceRequest) (models.Invoice, error) {
	var inv models.Invoice
	if req == nil {
		var err error
		inv, err = generator.RandomInvoice("")
		if err != nil {
			return models.Invoice{}, err
		}
	} else {
		for _, li := range req.LineItems {
			if err := li.Validate(); err != nil {
				return models.Invoice{}, err
			}
		}
		encoded, err := models.EncodeLineItems(req.LineItems)
		if err != nil {
			return models.Invoice{}, err
		}
		status := req.Status
		if status == "" {
			status = models.InvoiceStatusUnprocessed
		}
		if !models.ValidInvoiceStatus(status) {
			return models.Invoice{}, errors.Errorf("invalid invoice status %q", status)
		}
		inv = models.Invoice{
			Vendor:     req.Vendor,
			LineItems:  encoded,
			Total:      models.Round2(req.Total),
			Status:     status,
			LinkedPOID: req.LinkedPOID,
		}
	}

	inv, err := s.store.SaveInvoice(inv)
	if err != nil {
		return models.Invoice{}, errors.Wrap(err, "save invoice")
	}
	s.logger.Infof("Created invoice %s for vendor %q", inv.ID, inv.Vendor)
	return inv, nil
}

// Get returns an invoice with its full automation history, newest run first.
func (s *InvoiceService) Get(id string) (models.Invoice, error) {
	inv, err := s.store.GetInvoice(id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Invoice{}, errors.Wrapf(ErrNotFound, "invoice %s", id)
	}
	if err != nil {
		return models.Invoice{}, err
	}
	runs, err := s.store.ListRunsForInvoice(id)
	if err != nil {
		return models.Invoice{}, errors.Wrap(err, "list automation runs")
	}
	inv.AutomationRuns = runs
	return inv, nil
}

// List returns all invoices newest first, each with its latest automation run.
func (s *InvoiceService) List() ([]models.Invoice, error) {
	invoices, err := s.store.ListInvoices()
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		runs, err := s.store.ListRunsForInvoice(invoices[i].ID)
		if err != nil {
			return nil, errors.Wrap(err, "list automation runs")
		}
		if len(runs) > 0 {
			invoices[i].AutomationRuns = runs[:1]
		}
	}
	return invoices, nil
}

// UpdateInvoiceRequest carries a partial invoice update.
type UpdateInvoiceRequest struct {
	Status     *models.InvoiceStatus `json:"status"`
	LinkedPOID *string               `json:"linkedPOId"`
}

// Update applies a manual patch to status and linked PO.
func (s *InvoiceService) Update(id string, req UpdateInvoiceRequest) (models.Invoice, error) {
	if req.Status != nil && !models.ValidInvoiceStatus(*req.Status) {
		return models.Invoice{}, errors.Errorf("invalid invoice status %q", *req.Status)
	}
	inv, err := s.store.UpdateInvoice(id, storage.InvoicePatch{Status: req.Status, LinkedPOID: req.LinkedPOID})
	if errors.Is(err, storage.ErrNotFound) {
		return models.Invoice{}, errors.Wrapf(ErrNotFound, "invoice %s", id)
	}
	if err != nil {
		return models.Invoice{}, err
	}
	return inv, nil
}
