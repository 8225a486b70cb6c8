package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livemenu/internal/models"
)

func testSnapshot(t *testing.T) models.Snapshot {
	t.Helper()
	snap, err := models.SeedSnapshot()
	require.NoError(t, err)
	return snap
}

func TestRedisStateRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	repo := NewRedisStateRepository(client, time.Hour, 2*time.Hour)
	ctx := context.Background()

	t.Run("SnapshotMiss", func(t *testing.T) {
		got, err := repo.GetSnapshot(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("SetAndGetSnapshot", func(t *testing.T) {
		snap := testSnapshot(t)
		require.NoError(t, repo.SetSnapshot(ctx, snap))

		got, err := repo.GetSnapshot(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, snap.ItemCount(), got.ItemCount())
		assert.Equal(t, time.Hour, s.TTL(snapshotKey))
	})

	t.Run("SnapshotExpires", func(t *testing.T) {
		require.NoError(t, repo.SetSnapshot(ctx, testSnapshot(t)))
		s.FastForward(2 * time.Hour)

		got, err := repo.GetSnapshot(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearSnapshot", func(t *testing.T) {
		require.NoError(t, repo.SetSnapshot(ctx, testSnapshot(t)))
		require.NoError(t, repo.ClearSnapshot(ctx))
		assert.False(t, s.Exists(snapshotKey))
	})

	t.Run("CorruptSnapshot", func(t *testing.T) {
		require.NoError(t, s.Set(snapshotKey, "{not json"))
		_, err := repo.GetSnapshot(ctx)
		assert.Error(t, err)
		s.Del(snapshotKey)
	})

	t.Run("Jobs", func(t *testing.T) {
		base := time.Now()
		for i, id := range []string{"job-a", "job-b", "job-c"} {
			job := &models.ExportJob{
				ID:        id,
				Kind:      "document",
				Status:    models.JobQueued,
				CreatedAt: base.Add(time.Duration(i) * time.Second),
			}
			require.NoError(t, repo.SaveJob(ctx, job))
		}

		got, err := repo.GetJob(ctx, "job-b")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.JobQueued, got.Status)

		missing, err := repo.GetJob(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)

		jobs, err := repo.ListJobs(ctx, 2)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, "job-c", jobs[0].ID)
		assert.Equal(t, "job-b", jobs[1].ID)
	})

	t.Run("NilClient", func(t *testing.T) {
		nilRepo := NewRedisStateRepository(nil, 0, 0)
		_, err := nilRepo.GetSnapshot(ctx)
		assert.Error(t, err)
		assert.Error(t, nilRepo.SaveJob(ctx, &models.ExportJob{ID: "x"}))
	})

	t.Run("PingAndClose", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
		assert.NoError(t, Close(nil))
	})
}

func TestMemoryStateRepository(t *testing.T) {
	repo := NewMemoryStateRepository(time.Hour)
	ctx := context.Background()

	got, err := repo.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	snap := testSnapshot(t)
	require.NoError(t, repo.SetSnapshot(ctx, snap))

	got, err = repo.GetSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap.ItemCount(), got.ItemCount())

	// копия не должна влиять на кэш
	for k := range got.Sections {
		delete(got.Sections, k)
	}
	again, _ := repo.GetSnapshot(ctx)
	assert.Equal(t, snap.ItemCount(), again.ItemCount())

	require.NoError(t, repo.ClearSnapshot(ctx))
	got, _ = repo.GetSnapshot(ctx)
	assert.Nil(t, got)

	job := &models.ExportJob{ID: "j1", Status: models.JobRunning, CreatedAt: time.Now()}
	require.NoError(t, repo.SaveJob(ctx, job))
	job.RecordProgress(models.PageProgress{Index: 0, Key: "cover", Status: "rendered"})

	stored, err := repo.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Empty(t, stored.Pages)

	require.NoError(t, repo.SaveJob(ctx, &models.ExportJob{ID: "j2", CreatedAt: time.Now().Add(time.Minute)}))
	jobs, err := repo.ListJobs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j2", jobs[0].ID)
}
