// Package registry implements the job template registry: the component that
// owns the name to template mapping and enforces its create, update and
// delete rules on top of a store.Store.
//
// The registry keeps no in-process state. Each call is one bounded round trip
// to the store, and concurrent writers to the same name are last-writer-wins.
package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/artpar/jobtemplates/internal/core/domain"
	"github.com/artpar/jobtemplates/internal/shell/store"
)

// Registry provides the four job template operations.
type Registry struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used to stamp templates.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a registry backed by s.
func New(s store.Store, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		store:  s,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns every stored template ordered by name. An empty registry
// yields an empty, non-nil slice.
func (r *Registry) List(ctx context.Context) ([]domain.JobTemplate, error) {
	templates, err := r.store.ListJobTemplates(ctx)
	if err != nil {
		r.logger.Error("failed to list job templates", "error", err)
		return nil, storeFailure(err)
	}
	if templates == nil {
		templates = []domain.JobTemplate{}
	}
	return templates, nil
}

// Create stores the template under its name. A template that already has the
// name is overwritten; there is no "already exists" outcome.
func (r *Registry) Create(ctx context.Context, cmd domain.JobTemplateCreate) (domain.BoolResult, error) {
	entry := domain.NewJobTemplate(cmd.Name, cmd.Template, r.now().UTC())
	if err := r.store.PutJobTemplate(ctx, entry); err != nil {
		r.logger.Error("failed to save job template", "name", cmd.Name, "error", err)
		return domain.BoolResult{}, storeFailure(err)
	}

	r.logger.Info("job template saved", "name", cmd.Name)
	return domain.BoolResult{Result: true}, nil
}

// Update replaces the body of an existing template. It fails with
// UNABLE_TO_UPDATE, and writes nothing, when the name is not registered.
func (r *Registry) Update(ctx context.Context, cmd domain.JobTemplateUpdate) (domain.BoolResult, error) {
	err := r.store.WithTx(ctx, func(tx store.Store) error {
		entry, err := tx.GetJobTemplate(ctx, cmd.Name)
		if err != nil {
			if store.IsNotFound(err) {
				return domain.NewError(domain.ErrCodeUnableToUpdate, domain.ErrNoSuchJobTemplate)
			}
			return err
		}

		entry.Replace(cmd.Template, r.now().UTC())
		return tx.PutJobTemplate(ctx, entry)
	})
	if err != nil {
		if derr, ok := domain.AsError(err); ok {
			return domain.BoolResult{}, derr
		}
		r.logger.Error("failed to update job template", "name", cmd.Name, "error", err)
		return domain.BoolResult{}, storeFailure(err)
	}

	r.logger.Info("job template updated", "name", cmd.Name)
	return domain.BoolResult{Result: true}, nil
}

// Delete removes the template and reports whether it existed. Deleting a
// missing name is a successful no-op that reports false.
func (r *Registry) Delete(ctx context.Context, cmd domain.JobTemplateDelete) (domain.BoolResult, error) {
	existed, err := r.store.DeleteJobTemplate(ctx, cmd.Name)
	if err != nil {
		r.logger.Error("failed to delete job template", "name", cmd.Name, "error", err)
		return domain.BoolResult{}, storeFailure(err)
	}

	if existed {
		r.logger.Info("job template deleted", "name", cmd.Name)
	}
	return domain.BoolResult{Result: existed}, nil
}

func storeFailure(err error) *domain.Error {
	return domain.NewError(domain.ErrCodeUnableToStore, err.Error())
}
