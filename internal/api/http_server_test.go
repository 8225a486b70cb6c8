package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livemenu/internal/config"
	"livemenu/internal/database"
	"livemenu/internal/export"
	"livemenu/internal/models"
	"livemenu/internal/plan"
	"livemenu/internal/render"
	"livemenu/internal/repository"
	"livemenu/internal/service"
	"livemenu/internal/storage"
)

type stubRenderer struct{}

func (stubRenderer) Render(_ context.Context, desc models.PageDescriptor, opts render.Options) (*render.Page, error) {
	return &render.Page{Index: opts.Index, Key: desc.PageKey(), Image: image.NewRGBA(image.Rect(0, 0, 10, 14))}, nil
}

type captureQueue struct {
	jobs []*models.ExportJob
}

func (q *captureQueue) Enqueue(_ context.Context, job *models.ExportJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type stubChecker struct{ err error }

func (c stubChecker) Ping(context.Context) error { return c.err }

type testEnv struct {
	ts      *httptest.Server
	menu    *service.MenuService
	exports *service.ExportService
	queue   *captureQueue
}

func newTestEnv(t *testing.T, checker HealthChecker) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "menu.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	menu := service.NewMenuService(db, nil, nil, &logger)
	builder, err := plan.NewBuilder(plan.DefaultEntries(), 18, true)
	require.NoError(t, err)
	sink, err := storage.NewLocalSink(t.TempDir())
	require.NoError(t, err)

	assembler := export.NewAssembler(stubRenderer{}, nil, export.Config{Product: "LiveBar"}, &logger)
	exports := service.NewExportService(menu, builder, assembler, sink, repository.NewMemoryStateRepository(time.Hour), nil, &logger)
	queue := &captureQueue{}
	exports.SetQueue(queue)

	cfg := config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true, Port: 0},
		Auth:    config.APIAuthConfig{Enabled: false},
	}
	if checker == nil {
		checker = db
	}
	server := NewHTTPServer(&cfg, menu, exports, checker, NewAuthenticator(cfg), &logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, menu: menu, exports: exports, queue: queue}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/readyz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestReadyzStoreDown(t *testing.T) {
	env := newTestEnv(t, stubChecker{err: errors.New("db closed")})

	resp := env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetMenu(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/api/v1/menu", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap models.Snapshot
	decodeBody(t, resp, &snap)
	c, ok := snap.Category(models.SectionSnacks, 0)
	require.True(t, ok)
	assert.Equal(t, "Fried Peanuts", c.Items[0].Name)
}

func TestItemEndpoints(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/menu/snacks/0/items", models.MenuItem{Name: "Masala Papad", Price: "₹90"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Index int `json:"index"`
	}
	decodeBody(t, resp, &created)

	snap, err := env.menu.Snapshot(ctx)
	require.NoError(t, err)
	c, _ := snap.Category(models.SectionSnacks, 0)
	require.Equal(t, len(c.Items)-1, created.Index)
	assert.Equal(t, "Masala Papad", c.Items[created.Index].Name)

	resp = env.do(t, http.MethodPut, "/api/v1/menu/snacks/0/items/0", models.MenuItem{Name: "Fried Peanuts", Price: "₹150"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/v1/menu/snacks/0/items/0", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	snap, _ = env.menu.Snapshot(ctx)
	c, _ = snap.Category(models.SectionSnacks, 0)
	assert.NotEqual(t, "Fried Peanuts", c.Items[0].Name)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown section", http.MethodPost, "/api/v1/menu/drinks/0/items", models.MenuItem{Name: "Cola"}, http.StatusBadRequest},
		{"missing category", http.MethodPost, "/api/v1/menu/snacks/99/items", models.MenuItem{Name: "Cola"}, http.StatusNotFound},
		{"bad category index", http.MethodPost, "/api/v1/menu/snacks/x/items", models.MenuItem{Name: "Cola"}, http.StatusBadRequest},
		{"empty name", http.MethodPost, "/api/v1/menu/snacks/0/items", models.MenuItem{Price: "₹10"}, http.StatusBadRequest},
		{"two price shapes", http.MethodPut, "/api/v1/menu/snacks/0/items/0", models.MenuItem{Name: "X", Price: "₹1", HalfPrice: "₹2"}, http.StatusBadRequest},
		{"missing item", http.MethodDelete, "/api/v1/menu/snacks/0/items/500", nil, http.StatusNotFound},
		{"unknown field", http.MethodPost, "/api/v1/menu/snacks/0/items", map[string]any{"title": "x"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAdjustPricesEndpoint(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/menu/prices", map[string]any{"percent": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Archive models.ArchiveInfo `json:"archive"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "Price adjustment: +10%", body.Archive.Note)

	snap, err := env.menu.Snapshot(ctx)
	require.NoError(t, err)
	c, _ := snap.Category(models.SectionSnacks, 0)
	assert.Equal(t, "₹132", c.Items[0].Price)

	resp = env.do(t, http.MethodPost, "/api/v1/menu/prices", map[string]any{"percent": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/menu/prices", map[string]any{"percent": 5, "category": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/menu/prices", map[string]any{"percent": 5, "section": "bar"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestArchiveEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/archives", map[string]string{"note": "weekend"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var info models.ArchiveInfo
	decodeBody(t, resp, &info)
	require.NotEmpty(t, info.ID)
	assert.Equal(t, "weekend", info.Note)

	resp = env.do(t, http.MethodGet, "/api/v1/archives", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Archives []models.ArchiveInfo `json:"archives"`
	}
	decodeBody(t, resp, &list)
	require.Len(t, list.Archives, 1)

	resp = env.do(t, http.MethodGet, "/api/v1/archives/"+info.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var archive models.Archive
	decodeBody(t, resp, &archive)
	assert.Equal(t, info.ID, archive.ID)
	assert.NotEmpty(t, archive.Snapshot.Sections)

	resp = env.do(t, http.MethodPost, "/api/v1/archives/"+info.ID+"/restore", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/archives", nil)
	decodeBody(t, resp, &list)
	assert.Len(t, list.Archives, 2, "restore archives the live menu first")

	resp = env.do(t, http.MethodGet, "/api/v1/archives/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/v1/archives/missing/restore", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/archives/"+info.ID+"/export", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, env.queue.jobs, 1)
	assert.Equal(t, info.ID, env.queue.jobs[0].ArchiveID)
	assert.Equal(t, "document", env.queue.jobs[0].Kind)
}

func TestResetEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/menu/reset", map[string]bool{"preserve_prices": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Archive models.ArchiveInfo `json:"archive"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, models.NoteAutoArchiveReset, body.Archive.Note)
}

func TestPlanEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/api/v1/plan", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Pages []models.PageSummary `json:"pages"`
		Total int                  `json:"total"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Pages)
	assert.Equal(t, len(body.Pages), body.Total)
	assert.Equal(t, models.PageCover, body.Pages[0].Kind)
	assert.Equal(t, 1, body.Pages[0].Number)
}

func TestExportJobEndpoints(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/exports", map[string]any{"kind": "document", "promo_percent": 10})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var job models.ExportJob
	decodeBody(t, resp, &job)
	assert.Equal(t, models.JobQueued, job.Status)
	require.Len(t, env.queue.jobs, 1)

	// выполняем задачу так же, как это сделал бы воркер
	require.NoError(t, env.exports.RunJob(ctx, env.queue.jobs[0]))

	resp = env.do(t, http.MethodGet, "/api/v1/exports/"+job.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var done models.ExportJob
	decodeBody(t, resp, &done)
	assert.Equal(t, models.JobSucceeded, done.Status)
	assert.Len(t, done.Pages, done.Total)
	require.Len(t, done.Artifacts, 1)
	assert.Equal(t, "LiveBar_Promo_10pct.pdf", done.Artifacts[0].Name)

	resp = env.do(t, http.MethodGet, "/api/v1/artifacts/"+done.Artifacts[0].Location, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "LiveBar_Promo_10pct.pdf")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	resp = env.do(t, http.MethodGet, "/api/v1/exports?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Jobs []models.ExportJob `json:"jobs"`
	}
	decodeBody(t, resp, &list)
	assert.Len(t, list.Jobs, 1)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"image needs a page", http.MethodPost, "/api/v1/exports", map[string]any{"kind": "image"}, http.StatusBadRequest},
		{"unknown kind", http.MethodPost, "/api/v1/exports", map[string]any{"kind": "gif"}, http.StatusBadRequest},
		{"unknown archive", http.MethodPost, "/api/v1/exports", map[string]any{"kind": "document", "archive_id": "nope"}, http.StatusNotFound},
		{"missing job", http.MethodGet, "/api/v1/exports/nope", nil, http.StatusNotFound},
		{"bad limit", http.MethodGet, "/api/v1/exports?limit=-1", nil, http.StatusBadRequest},
		{"missing artifact", http.MethodGet, "/api/v1/artifacts/exports/none.pdf", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestPriceListEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/api/v1/pricelist", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasSuffix(resp.Header.Get("Content-Disposition"), `.xlsx"`))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")), "xlsx is a zip archive")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodGet, "/api/v1/orders", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/api/v1/menu", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
