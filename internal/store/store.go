package store

import (
	"context"
	"errors"

	"github.com/joescharf/comply/internal/models"
)

// ErrNotFound is wrapped by lookups that match nothing.
var ErrNotFound = errors.New("not found")

// RunListFilter specifies filters for listing runs.
type RunListFilter struct {
	State models.PipelineState
	Limit int
}

// Store defines the persistence interface for comply.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, filter RunListFilter) ([]*models.Run, error)
	UpdateRun(ctx context.Context, run *models.Run) error

	// Audit entries are append-only; there is no update or delete.
	AppendAuditEntry(ctx context.Context, runID string, e *models.AuditEntry) error
	ListAuditEntries(ctx context.Context, runID string) ([]models.AuditEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
