package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livemenu/internal/config"
	"livemenu/internal/export"
	"livemenu/internal/repository"
	"livemenu/internal/render"
)

func loadConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`
database:
  path: %q
exports:
  path: %q
  scale: 0.5
branding:
  name: "Test Bar"
  location_url: "https://maps.example.com/bar"
%s`, filepath.Join(dir, "menu.db"), filepath.Join(dir, "exports"), extra)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestNewWithoutRedis(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	cfg := loadConfig(t, "")

	a, err := New(ctx, cfg, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Nil(t, a.Redis)
	assert.IsType(t, &repository.MemoryStateRepository{}, a.State)
	require.NoError(t, a.Store.Ping(ctx))

	p, err := a.Exports.Plan(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, p)

	out, err := a.Exports.Export(ctx, export.Request{Mode: export.ModeCurrent, Page: "cover", Kind: export.KindImage}, nil)
	require.NoError(t, err)
	require.Len(t, out.Artifacts, 1)
	assert.Equal(t, "menu-cover.png", out.Artifacts[0].Name)
	_, err = os.Stat(filepath.Join(cfg.Exports.Path, out.Artifacts[0].Location))
	assert.NoError(t, err)
}

func TestNewWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := zerolog.Nop()
	cfg := loadConfig(t, fmt.Sprintf("redis:\n  address: %q\n", mr.Addr()))

	a, err := New(context.Background(), cfg, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NotNil(t, a.Redis)
	assert.IsType(t, &repository.FailoverStateRepository{}, a.State)
}

func TestNewRedisUnavailable(t *testing.T) {
	logger := zerolog.Nop()
	cfg := loadConfig(t, "redis:\n  address: \"127.0.0.1:1\"\n")

	a, err := New(context.Background(), cfg, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.Nil(t, a.Redis)
}

func TestNewPlanBuilder(t *testing.T) {
	b, err := NewPlanBuilder(config.ExportConfig{SplitThreshold: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, b.SplitThreshold)
	assert.True(t, b.IncludeBackCover)

	_, err = NewPlanBuilder(config.ExportConfig{PlanFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestBranding(t *testing.T) {
	def := render.DefaultBranding()

	b := Branding(config.BrandingConfig{Name: "Rooftop", Phone: "  ", Narrative: []string{"One line."}})
	assert.Equal(t, "Rooftop", b.Name)
	assert.Equal(t, def.Phone, b.Phone)
	assert.Equal(t, def.Subtitle, b.Subtitle)
	assert.Equal(t, []string{"One line."}, b.Narrative)

	assert.Equal(t, def, Branding(config.BrandingConfig{}))
}
