package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"livemenu/internal/models"
)

type MemoryStateRepository struct {
	mu          sync.RWMutex
	snapshot    *models.Snapshot
	snapshotAt  time.Time
	snapshotTTL time.Duration
	jobs        sync.Map
}

func NewMemoryStateRepository(snapshotTTL time.Duration) *MemoryStateRepository {
	if snapshotTTL <= 0 {
		snapshotTTL = models.DefaultSnapshotTTL
	}
	return &MemoryStateRepository{snapshotTTL: snapshotTTL}
}

func (r *MemoryStateRepository) GetSnapshot(_ context.Context) (*models.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snapshot == nil || time.Since(r.snapshotAt) > r.snapshotTTL {
		return nil, nil
	}
	snap := r.snapshot.Clone()
	return &snap, nil
}

func (r *MemoryStateRepository) SetSnapshot(_ context.Context, snap models.Snapshot) error {
	c := snap.Clone()
	r.mu.Lock()
	r.snapshot = &c
	r.snapshotAt = time.Now()
	r.mu.Unlock()
	return nil
}

func (r *MemoryStateRepository) ClearSnapshot(_ context.Context) error {
	r.mu.Lock()
	r.snapshot = nil
	r.mu.Unlock()
	return nil
}

func (r *MemoryStateRepository) GetJob(_ context.Context, id string) (*models.ExportJob, error) {
	val, ok := r.jobs.Load(id)
	if !ok {
		return nil, nil
	}
	job := copyJob(val.(*models.ExportJob))
	return job, nil
}

func (r *MemoryStateRepository) SaveJob(_ context.Context, job *models.ExportJob) error {
	r.jobs.Store(job.ID, copyJob(job))
	return nil
}

func (r *MemoryStateRepository) ListJobs(_ context.Context, limit int) ([]*models.ExportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	var jobs []*models.ExportJob
	r.jobs.Range(func(_, v any) bool {
		jobs = append(jobs, copyJob(v.(*models.ExportJob)))
		return true
	})
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func copyJob(j *models.ExportJob) *models.ExportJob {
	c := *j
	c.Pages = append([]models.PageProgress(nil), j.Pages...)
	c.Artifacts = append([]models.ArtifactRef(nil), j.Artifacts...)
	return &c
}
