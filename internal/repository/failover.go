package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"livemenu/internal/domain"
	"livemenu/internal/models"
)

const recoverAfter = time.Minute

// FailoverStateRepository uses primary until it errors, then serves from
// fallback and retries primary once a minute.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverStateRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > recoverAfter
}

func (r *FailoverStateRepository) observe(err error) {
	if err == nil {
		if r.isDown.Swap(false) {
			r.logger.Info().Msg("Primary state repository recovered")
		}
		return
	}
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary state repository failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

func (r *FailoverStateRepository) GetSnapshot(ctx context.Context) (*models.Snapshot, error) {
	if r.usePrimary() {
		snap, err := r.primary.GetSnapshot(ctx)
		r.observe(err)
		if err == nil {
			return snap, nil
		}
	}
	return r.fallback.GetSnapshot(ctx)
}

func (r *FailoverStateRepository) SetSnapshot(ctx context.Context, snap models.Snapshot) error {
	// fallback всегда держит копию, чтобы переключение не теряло меню
	_ = r.fallback.SetSnapshot(ctx, snap)
	if r.usePrimary() {
		err := r.primary.SetSnapshot(ctx, snap)
		r.observe(err)
	}
	return nil
}

func (r *FailoverStateRepository) ClearSnapshot(ctx context.Context) error {
	_ = r.fallback.ClearSnapshot(ctx)
	if r.usePrimary() {
		err := r.primary.ClearSnapshot(ctx)
		r.observe(err)
	}
	return nil
}

func (r *FailoverStateRepository) GetJob(ctx context.Context, id string) (*models.ExportJob, error) {
	if r.usePrimary() {
		job, err := r.primary.GetJob(ctx, id)
		r.observe(err)
		if err == nil && job != nil {
			return job, nil
		}
	}
	return r.fallback.GetJob(ctx, id)
}

func (r *FailoverStateRepository) SaveJob(ctx context.Context, job *models.ExportJob) error {
	_ = r.fallback.SaveJob(ctx, job)
	if r.usePrimary() {
		err := r.primary.SaveJob(ctx, job)
		r.observe(err)
	}
	return nil
}

func (r *FailoverStateRepository) ListJobs(ctx context.Context, limit int) ([]*models.ExportJob, error) {
	if r.usePrimary() {
		jobs, err := r.primary.ListJobs(ctx, limit)
		r.observe(err)
		if err == nil {
			return jobs, nil
		}
	}
	return r.fallback.ListJobs(ctx, limit)
}
