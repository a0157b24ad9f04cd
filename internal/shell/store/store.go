package store

import (
	"context"

	"github.com/artpar/jobtemplates/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store is the durable name-keyed storage behind the template registry.
type Store interface {
	// GetJobTemplate returns ErrNotFound (wrapped in a StoreError) when absent.
	GetJobTemplate(ctx context.Context, name string) (*domain.JobTemplate, error)

	// ListJobTemplates returns every stored template ordered by name.
	ListJobTemplates(ctx context.Context) ([]domain.JobTemplate, error)

	// PutJobTemplate inserts the template or replaces the one with the same name.
	PutJobTemplate(ctx context.Context, template *domain.JobTemplate) error

	// DeleteJobTemplate removes the template and reports whether it existed.
	DeleteJobTemplate(ctx context.Context, name string) (bool, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
