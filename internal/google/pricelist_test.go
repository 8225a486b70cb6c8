package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"livemenu/internal/models"
)

type recordedCall struct {
	Method string
	Path   string
	Body   sheets.ValueRange
}

func setupMockServer(t *testing.T, status int) (*PriceListSheet, func() []recordedCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := recordedCall{Method: r.Method, Path: r.URL.Path}
		if r.Method == http.MethodPut {
			_ = json.NewDecoder(r.Body).Decode(&call.Body)
		}
		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)

	s := newPriceListSheet(srv, "prices_tid", "Prices")
	s.now = func() time.Time { return time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC) }
	return s, func() []recordedCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedCall(nil), calls...)
	}
}

func TestReplacePriceList(t *testing.T) {
	s, calls := setupMockServer(t, http.StatusOK)
	snap, err := models.SeedSnapshot()
	require.NoError(t, err)

	require.NoError(t, s.ReplacePriceList(context.Background(), snap))

	got := calls()
	require.Len(t, got, 2)
	assert.Equal(t, http.MethodPost, got[0].Method)
	assert.True(t, strings.HasSuffix(got[0].Path, ":clear"), got[0].Path)
	assert.Contains(t, got[0].Path, "/v4/spreadsheets/prices_tid/values/")

	assert.Equal(t, http.MethodPut, got[1].Method)
	values := got[1].Body.Values
	require.Len(t, values, snap.ItemCount()+2)
	assert.Equal(t, "Updated 01.03.2026 18:30", values[0][0])
	assert.Equal(t, "Section", values[1][0])
}

func TestReplacePriceListError(t *testing.T) {
	s, _ := setupMockServer(t, http.StatusForbidden)
	err := s.ReplacePriceList(context.Background(), models.NewSnapshot())
	assert.ErrorContains(t, err, "clear price list sheet")
}

func TestTestConnection(t *testing.T) {
	s, calls := setupMockServer(t, http.StatusOK)
	require.NoError(t, s.TestConnection(context.Background()))
	require.Len(t, calls(), 1)
	assert.Equal(t, http.MethodGet, calls()[0].Method)
}

func TestCellQuoting(t *testing.T) {
	s := newPriceListSheet(nil, "id", "Bar's Prices")
	assert.Equal(t, "'Bar''s Prices'!A1", s.cell("A1"))
	assert.Equal(t, "'Price List'!B2", newPriceListSheet(nil, "id", "").cell("B2"))
}

func TestServiceAccountEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client_email":"menu@project.iam.gserviceaccount.com"}`), 0o600))

	email, err := ServiceAccountEmail(path)
	require.NoError(t, err)
	assert.Equal(t, "menu@project.iam.gserviceaccount.com", email)

	_, err = ServiceAccountEmail(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
