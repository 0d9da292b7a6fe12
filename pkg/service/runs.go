package service

import (
	"github.com/procurehq/potrack/pkg/models"
	"github.com/procurehq/potrack/pkg/storage"
)

// RunService exposes the automation run ledger read-only.
type RunService struct {
	store storage.Store
}

func NewRunService(store storage.Store) *RunService {
	return &RunService{store: store}
}

// List returns all automation runs newest first, each with a summary of its
// source invoice.
func (s *RunService) List() ([]models.AutomationRun, error) {
	return s.store.ListAutomationRuns(storage.RunFilter{})
}
