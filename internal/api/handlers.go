package api

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"livemenu/internal/export"
	"livemenu/internal/models"
	"livemenu/internal/pricing"
)

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.checker != nil {
		if err := s.checker.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) handleGetMenu(w http.ResponseWriter, r *http.Request) {
	snap, err := s.menu.Snapshot(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// categoryPath reads {section}/{category} from the route.
func categoryPath(r *http.Request) (models.SectionKey, int, bool) {
	section := models.SectionKey(strings.ToLower(r.PathValue("section")))
	category, err := strconv.Atoi(r.PathValue("category"))
	if err != nil || category < 0 {
		return section, 0, false
	}
	return section, category, true
}

func (s *HTTPServer) handleAddItem(w http.ResponseWriter, r *http.Request) {
	section, category, ok := categoryPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid category index")
		return
	}
	var item models.MenuItem
	if !decodeJSON(w, r, &item) {
		return
	}

	index, err := s.menu.AddItem(r.Context(), section, category, item)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"index": index, "item": item})
}

func (s *HTTPServer) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	section, category, ok := categoryPath(r)
	index, err := strconv.Atoi(r.PathValue("index"))
	if !ok || err != nil {
		writeError(w, http.StatusBadRequest, "invalid category or item index")
		return
	}
	var item models.MenuItem
	if !decodeJSON(w, r, &item) {
		return
	}

	if err := s.menu.UpdateItem(r.Context(), section, category, index, item); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"index": index, "item": item})
}

func (s *HTTPServer) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	section, category, ok := categoryPath(r)
	index, err := strconv.Atoi(r.PathValue("index"))
	if !ok || err != nil {
		writeError(w, http.StatusBadRequest, "invalid category or item index")
		return
	}
	if err := s.menu.DeleteItem(r.Context(), section, category, index); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustPricesRequest struct {
	Percent  float64 `json:"percent"`
	Section  string  `json:"section,omitempty"`
	Category *int    `json:"category,omitempty"`
}

func (s *HTTPServer) handleAdjustPrices(w http.ResponseWriter, r *http.Request) {
	var body adjustPricesRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Category != nil && body.Section == "" {
		writeError(w, http.StatusBadRequest, "category requires section")
		return
	}

	scope := pricing.Scope{Section: models.SectionKey(strings.ToLower(body.Section)), Category: body.Category}
	info, err := s.menu.AdjustPrices(r.Context(), body.Percent, scope)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archive": info})
}

type resetRequest struct {
	PreservePrices bool `json:"preserve_prices"`
}

func (s *HTTPServer) handleReset(w http.ResponseWriter, r *http.Request) {
	var body resetRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}
	info, err := s.menu.Reset(r.Context(), body.PreservePrices)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archive": info})
}

func (s *HTTPServer) handleListArchives(w http.ResponseWriter, r *http.Request) {
	archives, err := s.menu.ListArchives(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if archives == nil {
		archives = []models.ArchiveInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": archives})
}

type createArchiveRequest struct {
	Note string `json:"note"`
}

func (s *HTTPServer) handleCreateArchive(w http.ResponseWriter, r *http.Request) {
	var body createArchiveRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}
	info, err := s.menu.Archive(r.Context(), body.Note)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *HTTPServer) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	archive, err := s.menu.GetArchive(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, archive)
}

func (s *HTTPServer) handleRestoreArchive(w http.ResponseWriter, r *http.Request) {
	info, err := s.menu.Restore(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restored": r.PathValue("id"), "archive": info})
}

// handleExportArchive queues a document export of one archive.
func (s *HTTPServer) handleExportArchive(w http.ResponseWriter, r *http.Request) {
	job, err := s.exports.Enqueue(r.Context(), export.Request{Kind: export.KindDocument}, r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *HTTPServer) handlePlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.exports.Plan(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": p.Summaries(), "total": len(p)})
}

type createExportRequest struct {
	export.Request
	ArchiveID string `json:"archive_id,omitempty"`
}

func (s *HTTPServer) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	var body createExportRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	job, err := s.exports.Enqueue(r.Context(), body.Request, body.ArchiveID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *HTTPServer) handleListExports(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 100)
	}
	jobs, err := s.exports.Jobs(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if jobs == nil {
		jobs = []*models.ExportJob{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *HTTPServer) handleGetExport(w http.ResponseWriter, r *http.Request) {
	job, err := s.exports.Job(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *HTTPServer) handleArtifact(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	rc, err := s.exports.Artifact(r.Context(), key)
	if err != nil {
		s.fail(w, err)
		return
	}
	defer rc.Close()

	attachment(w, path.Base(key), mime.TypeByExtension(path.Ext(key)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("artifact stream interrupted")
	}
}

func (s *HTTPServer) handlePriceList(w http.ResponseWriter, r *http.Request) {
	a, err := s.exports.PriceList(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	attachment(w, a.Name, a.ContentType)
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}
