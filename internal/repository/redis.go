package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"livemenu/internal/config"
	"livemenu/internal/models"
)

const (
	snapshotKey = "livemenu:snapshot"
	jobKeyFmt   = "livemenu:export_job:%s"
	jobIndexKey = "livemenu:export_jobs"
)

type RedisStateRepository struct {
	client      *redis.Client
	snapshotTTL time.Duration
	jobTTL      time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisStateRepository(client *redis.Client, snapshotTTL, jobTTL time.Duration) *RedisStateRepository {
	if snapshotTTL <= 0 {
		snapshotTTL = models.DefaultSnapshotTTL
	}
	if jobTTL <= 0 {
		jobTTL = models.DefaultJobTTL
	}
	return &RedisStateRepository{
		client:      client,
		snapshotTTL: snapshotTTL,
		jobTTL:      jobTTL,
	}
}

func (r *RedisStateRepository) GetSnapshot(ctx context.Context) (*models.Snapshot, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from redis: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (r *RedisStateRepository) SetSnapshot(ctx context.Context, snap models.Snapshot) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, snapshotKey, data, r.snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot in redis: %w", err)
	}
	return nil
}

func (r *RedisStateRepository) ClearSnapshot(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, snapshotKey).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot from redis: %w", err)
	}
	return nil
}

func (r *RedisStateRepository) GetJob(ctx context.Context, id string) (*models.ExportJob, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, fmt.Sprintf(jobKeyFmt, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job from redis: %w", err)
	}

	var job models.ExportJob
	if err := json.Unmarshal(val, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func (r *RedisStateRepository) SaveJob(ctx context.Context, job *models.ExportJob) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, fmt.Sprintf(jobKeyFmt, job.ID), data, r.jobTTL)
		pipe.ZAdd(ctx, jobIndexKey, redis.Z{Score: float64(job.CreatedAt.UnixNano()), Member: job.ID})
		// индекс чистим по тому же сроку, что и сами задачи
		pipe.ZRemRangeByScore(ctx, jobIndexKey, "-inf", fmt.Sprintf("(%d", time.Now().Add(-r.jobTTL).UnixNano()))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save job in redis: %w", err)
	}
	return nil
}

// ListJobs returns the most recent jobs, newest first.
func (r *RedisStateRepository) ListJobs(ctx context.Context, limit int) ([]*models.ExportJob, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	ids, err := r.client.ZRevRange(ctx, jobIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*models.ExportJob, 0, len(ids))
	for _, id := range ids {
		job, err := r.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
