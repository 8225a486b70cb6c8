package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"livemenu/internal/domain"
	"livemenu/internal/models"
)

var ErrQueueFull = errors.New("export queue is full")

const (
	exportQueueKey      = "livemenu:exports:queue"
	exportDeadLetterKey = "livemenu:exports:deadletter"
)

// JobRunner executes one export job and records its progress.
type JobRunner interface {
	RunJob(ctx context.Context, job *models.ExportJob) error
}

// ExportWorker is the single consumer of export jobs. Jobs travel through a
// redis list when redis is configured and through an in-memory channel otherwise.
type ExportWorker struct {
	runner      JobRunner
	jobs        domain.StateRepository
	redis       *redis.Client
	retryPolicy RetryPolicy
	queue       chan models.ExportJob
	queueKey    string
	deadKey     string
	logger      *zerolog.Logger
	retries     sync.WaitGroup
}

// NewExportWorker builds a worker with sane defaults.
func NewExportWorker(runner JobRunner, jobs domain.StateRepository, redisClient *redis.Client, retry RetryPolicy, queueSize int, logger *zerolog.Logger) *ExportWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 2
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if queueSize <= 0 {
		queueSize = 32
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "export_worker").Logger()

	return &ExportWorker{
		runner:      runner,
		jobs:        jobs,
		redis:       redisClient,
		retryPolicy: retry,
		queue:       make(chan models.ExportJob, queueSize),
		queueKey:    exportQueueKey,
		deadKey:     exportDeadLetterKey,
		logger:      &l,
	}
}

// Enqueue schedules job via redis or the in-memory queue.
func (w *ExportWorker) Enqueue(ctx context.Context, job *models.ExportJob) error {
	if job == nil || job.ID == "" {
		return errors.New("job id is required")
	}

	if w.redis != nil {
		err := w.pushRedis(ctx, w.queueKey, job)
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("redis push failed, fallback to memory queue")
	}

	select {
	case w.queue <- *job:
		return nil
	default:
		return fmt.Errorf("%w: job %s", ErrQueueFull, job.ID)
	}
}

// Start runs the consume loop until ctx is done.
func (w *ExportWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("export worker started")
	defer w.logger.Info().Msg("export worker stopped")
	defer w.retries.Wait()

	for {
		if ctx.Err() != nil {
			return
		}

		if job, ok := w.tryLocalQueue(); ok {
			w.processJob(ctx, &job)
			continue
		}

		if w.redis == nil {
			select {
			case <-ctx.Done():
				return
			case job := <-w.queue:
				w.processJob(ctx, &job)
			}
			continue
		}

		if job, ok := w.tryRedis(ctx); ok {
			w.processJob(ctx, &job)
		}
	}
}

func (w *ExportWorker) tryLocalQueue() (models.ExportJob, bool) {
	select {
	case job := <-w.queue:
		return job, true
	default:
		return models.ExportJob{}, false
	}
}

func (w *ExportWorker) tryRedis(ctx context.Context) (models.ExportJob, bool) {
	res, err := w.redis.BRPop(ctx, time.Second, w.queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return models.ExportJob{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		// не крутим цикл впустую, пока redis недоступен
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return models.ExportJob{}, false
	}
	if len(res) != 2 {
		return models.ExportJob{}, false
	}
	var job models.ExportJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		w.logger.Error().Err(err).Msg("decode redis job")
		return models.ExportJob{}, false
	}
	return job, true
}

func (w *ExportWorker) processJob(ctx context.Context, job *models.ExportJob) {
	log := w.logger.With().Str("job_id", job.ID).Str("kind", job.Kind).Int("attempt", job.Attempts+1).Logger()
	log.Info().Msg("export job started")

	err := w.run(ctx, job)
	if err == nil {
		log.Info().Str("status", job.Status).Msg("export job finished")
		return
	}
	if ctx.Err() != nil {
		// остановка сервиса, повторять не будем
		log.Warn().Err(err).Msg("export job interrupted by shutdown")
		w.markFailed(context.WithoutCancel(ctx), job, err)
		return
	}
	w.retryOrFail(ctx, job, err)
}

func (w *ExportWorker) run(ctx context.Context, job *models.ExportJob) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("export job panic: %v", rec)
		}
	}()
	return w.runner.RunJob(ctx, job)
}

func (w *ExportWorker) retryOrFail(ctx context.Context, job *models.ExportJob, cause error) {
	job.Attempts++
	if IsPermanent(cause) || job.Attempts > w.retryPolicy.MaxRetries {
		w.logger.Error().Err(cause).Str("job_id", job.ID).Int("attempts", job.Attempts).Msg("export job failed")
		w.markFailed(ctx, job, cause)
		w.pushDeadLetter(ctx, job)
		return
	}

	delay := w.retryPolicy.NextDelay(job.Attempts)
	job.Status = models.JobRetrying
	job.Error = cause.Error()
	job.UpdatedAt = time.Now().UTC()
	w.saveJob(ctx, job)
	w.logger.Warn().Err(cause).Str("job_id", job.ID).Dur("delay", delay).Msg("export job will be retried")

	retry := *job
	w.retries.Add(1)
	go func() {
		defer w.retries.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := w.Enqueue(ctx, &retry); err != nil {
			w.logger.Error().Err(err).Str("job_id", retry.ID).Msg("re-enqueue failed")
			w.markFailed(ctx, &retry, err)
		}
	}()
}

func (w *ExportWorker) markFailed(ctx context.Context, job *models.ExportJob, cause error) {
	job.Status = models.JobFailed
	job.Error = cause.Error()
	job.UpdatedAt = time.Now().UTC()
	w.saveJob(ctx, job)
}

func (w *ExportWorker) saveJob(ctx context.Context, job *models.ExportJob) {
	if w.jobs == nil {
		return
	}
	if err := w.jobs.SaveJob(ctx, job); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("save job state")
	}
}

func (w *ExportWorker) pushRedis(ctx context.Context, key string, job *models.ExportJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

func (w *ExportWorker) pushDeadLetter(ctx context.Context, job *models.ExportJob) {
	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadKey, job); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("deadletter push")
	}
}
