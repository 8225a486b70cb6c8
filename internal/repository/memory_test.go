package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livemenu/internal/models"
)

func TestMemorySnapshotTTL(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStateRepository(20 * time.Millisecond)

	got, err := repo.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	snap := models.NewSnapshot()
	snap.Sections[models.SectionSides] = models.MenuSection{
		Title:      "SIDES",
		Categories: []models.MenuCategory{{Title: "BREADS", Items: []models.MenuItem{{Name: "Naan", Price: "₹60"}}}},
	}
	require.NoError(t, repo.SetSnapshot(ctx, snap))

	// изменения исходника не должны попадать в кэш
	snap.Sections[models.SectionSides].Categories[0].Items[0].Price = "₹999"

	got, err = repo.GetSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "₹60", got.Sections[models.SectionSides].Categories[0].Items[0].Price)

	time.Sleep(30 * time.Millisecond)
	got, err = repo.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.SetSnapshot(ctx, snap))
	require.NoError(t, repo.ClearSnapshot(ctx))
	got, _ = repo.GetSnapshot(ctx)
	assert.Nil(t, got)
}

func TestMemoryJobs(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStateRepository(0)

	missing, err := repo.GetJob(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.SaveJob(ctx, &models.ExportJob{ID: id, Status: models.JobQueued, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	job, err := repo.GetJob(ctx, "b")
	require.NoError(t, err)
	job.RecordProgress(models.PageProgress{Index: 0, Key: "cover", Status: "rendered"})
	stored, _ := repo.GetJob(ctx, "b")
	assert.Empty(t, stored.Pages)

	jobs, err := repo.ListJobs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "c", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
}
