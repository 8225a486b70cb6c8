package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"livemenu/internal/domain"
	"livemenu/internal/events"
	"livemenu/internal/export"
	"livemenu/internal/models"
	"livemenu/internal/plan"
	"livemenu/internal/storage"
	"livemenu/internal/worker"
)

var ErrJobNotFound = errors.New("export job not found")

// DocumentSender delivers finished documents to admins.
type DocumentSender interface {
	SendDocument(name string, data []byte, caption string) error
}

// ExportOutcome is a finished export with its stored artifacts.
type ExportOutcome struct {
	Result    *export.Result       `json:"result"`
	Artifacts []models.ArtifactRef `json:"artifacts"`
}

type ExportService struct {
	menu      *MenuService
	planner   *plan.Builder
	assembler *export.Assembler
	sink      storage.Sink
	jobs      domain.StateRepository
	queue     domain.ExportQueue
	eventBus  domain.EventPublisher
	documents DocumentSender
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewExportService(
	menu *MenuService,
	planner *plan.Builder,
	assembler *export.Assembler,
	sink storage.Sink,
	jobs domain.StateRepository,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *ExportService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "export_service").Logger()
	return &ExportService{
		menu:      menu,
		planner:   planner,
		assembler: assembler,
		sink:      sink,
		jobs:      jobs,
		eventBus:  eventBus,
		logger:    &l,
		now:       time.Now,
	}
}

// SetQueue wires the background worker. Without a queue Enqueue fails.
func (s *ExportService) SetQueue(q domain.ExportQueue) {
	s.queue = q
}

// SetDocumentSender enables delivery of finished documents to admins.
func (s *ExportService) SetDocumentSender(d DocumentSender) {
	s.documents = d
}

// Plan builds the page plan for the live menu.
func (s *ExportService) Plan(ctx context.Context) (models.Plan, error) {
	snap, err := s.menu.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.planner.Build(snap), nil
}

// Export renders the live menu synchronously and stores the artifacts.
func (s *ExportService) Export(ctx context.Context, req export.Request, progress export.ProgressFunc) (*ExportOutcome, error) {
	snap, err := s.menu.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, uuid.NewString(), snap, req, progress)
}

// ExportArchive renders an archived menu as a document named after its date.
func (s *ExportService) ExportArchive(ctx context.Context, id string, req export.Request, progress export.ProgressFunc) (*ExportOutcome, error) {
	return s.exportArchive(ctx, uuid.NewString(), id, req, progress)
}

func (s *ExportService) exportArchive(ctx context.Context, runID, id string, req export.Request, progress export.ProgressFunc) (*ExportOutcome, error) {
	archive, err := s.menu.GetArchive(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Archive = &export.ArchiveLabel{ID: archive.ID, ArchivedAt: archive.ArchivedAt}
	return s.run(ctx, runID, archive.Snapshot, req, progress)
}

func (s *ExportService) run(ctx context.Context, runID string, snap models.Snapshot, req export.Request, progress export.ProgressFunc) (*ExportOutcome, error) {
	p := s.planner.Build(snap)
	result, err := s.assembler.Export(ctx, p, req, progress)
	if err != nil {
		return &ExportOutcome{Result: result}, err
	}

	out := &ExportOutcome{Result: result}
	for _, a := range result.Artifacts {
		ref, err := s.sink.Put(ctx, storage.Key("exports", runID, a.Name), a.ContentType, a.Data)
		if err != nil {
			return out, fmt.Errorf("store %s: %w", a.Name, err)
		}
		out.Artifacts = append(out.Artifacts, ref)
	}
	return out, nil
}

// Enqueue validates req and schedules it for the background worker.
func (s *ExportService) Enqueue(ctx context.Context, req export.Request, archiveID string) (*models.ExportJob, error) {
	if s.queue == nil {
		return nil, errors.New("export queue is not configured")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if archiveID != "" {
		if _, err := s.menu.GetArchive(ctx, archiveID); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	job := &models.ExportJob{
		ID:           uuid.NewString(),
		Mode:         string(req.Mode),
		Kind:         string(req.Kind),
		Format:       string(req.Format),
		Page:         req.Page,
		PromoPercent: req.PromoPercent,
		ArchiveID:    archiveID,
		Status:       models.JobQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		job.Status = models.JobFailed
		job.Error = err.Error()
		_ = s.jobs.SaveJob(ctx, job)
		return nil, err
	}
	s.logger.Info().Str("job_id", job.ID).Str("kind", job.Kind).Msg("export job queued")
	return job, nil
}

func (s *ExportService) Job(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

func (s *ExportService) Jobs(ctx context.Context, limit int) ([]*models.ExportJob, error) {
	return s.jobs.ListJobs(ctx, limit)
}

// Artifact opens a stored artifact by key.
func (s *ExportService) Artifact(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.sink.Open(ctx, key)
}

// PriceList builds the xlsx price list of the live menu.
func (s *ExportService) PriceList(ctx context.Context) (export.Artifact, error) {
	snap, err := s.menu.Snapshot(ctx)
	if err != nil {
		return export.Artifact{}, err
	}
	now := s.now()
	data, err := export.PriceListWorkbook(snap, now)
	if err != nil {
		return export.Artifact{}, err
	}
	return export.Artifact{
		Name:        s.assembler.Naming().PriceList(now),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}, nil
}

// RunJob executes a queued job. Request errors and empty exports are permanent.
func (s *ExportService) RunJob(ctx context.Context, job *models.ExportJob) error {
	req := export.Request{
		Mode:         export.Mode(job.Mode),
		Page:         job.Page,
		Kind:         export.Kind(job.Kind),
		Format:       export.Format(job.Format),
		PromoPercent: job.PromoPercent,
	}

	job.Status = models.JobRunning
	job.Error = ""
	job.Pages = nil
	job.UpdatedAt = s.now().UTC()
	s.saveJob(ctx, job)

	progress := func(p export.Progress) {
		entry := models.PageProgress{Index: p.Index, Number: p.Index + 1, Key: p.Key, Status: string(p.Status)}
		if p.Err != nil {
			entry.Error = p.Err.Error()
		}
		job.Total = p.Total
		job.RecordProgress(entry)
		job.UpdatedAt = s.now().UTC()
		s.saveJob(ctx, job)
		s.publish(events.EventExportProgress, events.ExportEventPayload{
			JobID: job.ID, Kind: job.Kind, Status: string(p.Status),
			Page: p.Key, Position: p.Position, Total: p.Total,
		})
	}

	var (
		out *ExportOutcome
		err error
	)
	if job.ArchiveID != "" {
		out, err = s.exportArchive(ctx, job.ID, job.ArchiveID, req, progress)
	} else {
		var snap models.Snapshot
		snap, err = s.menu.Snapshot(ctx)
		if err == nil {
			out, err = s.run(ctx, job.ID, snap, req, progress)
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		if errors.Is(err, export.ErrNoPagesRendered) || errors.Is(err, export.ErrInvalidRequest) ||
			errors.Is(err, export.ErrPageNotFound) || errors.Is(err, export.ErrNoPrinter) {
			s.finish(job, models.JobFailed, nil, err)
			return worker.Permanent(err)
		}
		return err
	}

	status := models.JobSucceeded
	if out.Result.Status == export.StatusPartial {
		status = models.JobPartial
	}
	s.finish(job, status, out, nil)
	s.deliver(job, out)
	return nil
}

func (s *ExportService) finish(job *models.ExportJob, status string, out *ExportOutcome, cause error) {
	job.Status = status
	job.UpdatedAt = s.now().UTC()
	payload := events.ExportEventPayload{JobID: job.ID, Kind: job.Kind, Status: status}
	if cause != nil {
		job.Error = cause.Error()
		payload.Error = cause.Error()
	}
	if out != nil {
		job.Artifacts = out.Artifacts
		for _, f := range out.Result.Failed() {
			payload.Failed = append(payload.Failed, f.Key)
		}
		for _, a := range out.Artifacts {
			payload.Artifacts = append(payload.Artifacts, a.Name)
		}
	}
	s.saveJob(context.Background(), job)
	s.publish(events.EventExportFinished, payload)
}

// deliver sends finished documents to admins.
func (s *ExportService) deliver(job *models.ExportJob, out *ExportOutcome) {
	if s.documents == nil || job.Kind != string(export.KindDocument) {
		return
	}
	for _, a := range out.Result.Artifacts {
		if err := s.documents.SendDocument(a.Name, a.Data, "Menu export "+job.Status); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("document delivery failed")
		}
	}
}

func (s *ExportService) saveJob(ctx context.Context, job *models.ExportJob) {
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("save job state")
	}
}

func (s *ExportService) publish(eventType string, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish event failed")
	}
}
