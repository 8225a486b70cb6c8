package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"livemenu/internal/models"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetSnapshot(ctx context.Context) (*models.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Snapshot), args.Error(1)
}

func (m *mockRepo) SetSnapshot(ctx context.Context, snap models.Snapshot) error {
	return m.Called(ctx, snap).Error(0)
}

func (m *mockRepo) ClearSnapshot(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockRepo) GetJob(ctx context.Context, id string) (*models.ExportJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExportJob), args.Error(1)
}

func (m *mockRepo) SaveJob(ctx context.Context, job *models.ExportJob) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockRepo) ListJobs(ctx context.Context, limit int) ([]*models.ExportJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ExportJob), args.Error(1)
}

func TestFailoverStateRepository(t *testing.T) {
	primary := new(mockRepo)
	fallback := NewMemoryStateRepository(time.Hour)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverStateRepository(primary, fallback, &logger)
	ctx := context.Background()

	now := time.Now()
	repo.now = func() time.Time { return now }

	t.Run("PrimarySuccess", func(t *testing.T) {
		job := &models.ExportJob{ID: "a"}
		primary.On("GetJob", ctx, "a").Return(job, nil).Once()

		got, err := repo.GetJob(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, job, got)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("WritesReachBoth", func(t *testing.T) {
		job := &models.ExportJob{ID: "b", CreatedAt: now}
		primary.On("SaveJob", ctx, job).Return(nil).Once()

		require.NoError(t, repo.SaveJob(ctx, job))
		stored, _ := fallback.GetJob(ctx, "b")
		assert.NotNil(t, stored)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackServes", func(t *testing.T) {
		primary.On("GetJob", ctx, "b").Return(nil, errors.New("connection refused")).Once()

		got, err := repo.GetJob(ctx, "b")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "b", got.ID)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		// primary не вызывается, mock упадет при неожиданном вызове
		got, err := repo.GetSnapshot(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		primary.On("ListJobs", ctx, 5).Return([]*models.ExportJob{{ID: "z"}}, nil).Once()

		jobs, err := repo.ListJobs(ctx, 5)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("SnapshotWriteFailureIsAbsorbed", func(t *testing.T) {
		snap := models.NewSnapshot()
		primary.On("SetSnapshot", ctx, snap).Return(errors.New("READONLY")).Once()

		assert.NoError(t, repo.SetSnapshot(ctx, snap))
		assert.True(t, repo.isDown.Load())

		cached, err := repo.GetSnapshot(ctx)
		require.NoError(t, err)
		assert.NotNil(t, cached)
	})
}
