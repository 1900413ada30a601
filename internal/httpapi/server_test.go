// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/digest"
	"github.com/pdiddy/paper-digest/internal/store"
	"github.com/pdiddy/paper-digest/pkg/types"
)

type fakeRefresher struct {
	stats      types.RefreshStats
	err        error
	categories []string
	calls      int
}

func (f *fakeRefresher) Refresh(ctx context.Context, categories []string, progress digest.ProgressFunc, w io.Writer) (types.RefreshStats, error) {
	f.calls++
	f.categories = categories
	return f.stats, f.err
}

func testServer(t *testing.T, cfg types.ServerConfig, refresher Refresher) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(types.StoreConfig{
		Path: filepath.Join(t.TempDir(), "papers.sqlite3"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewServer(cfg, st, refresher, []string{"cs.DC", "cs.OS"}), st
}

func seedPapers(t *testing.T, st *store.Store, n int) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var papers []*types.Paper
	for i := 0; i < n; i++ {
		p := &types.Paper{
			ArxivID:     "2401.0000" + string(rune('1'+i)) + "v1",
			Title:       "Paper",
			Authors:     []string{"Alice"},
			Categories:  []string{"cs.DC"},
			PublishedAt: base.Add(time.Duration(i) * time.Hour),
			CreatedAt:   base,
		}
		papers = append(papers, p)
	}
	require.NoError(t, st.UpsertAll(context.Background(), papers))
}

func doRequest(t *testing.T, s *Server, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s, _ := testServer(t, types.ServerConfig{}, &fakeRefresher{})
	w := doRequest(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListPapers_Pagination(t *testing.T) {
	s, st := testServer(t, types.ServerConfig{}, &fakeRefresher{})
	seedPapers(t, st, 5)

	w := doRequest(t, s, http.MethodGet, "/api/papers?limit=2&offset=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Papers []paperView `json:"papers"`
		Total  int         `json:"total"`
		Limit  int         `json:"limit"`
		Offset int         `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 2, resp.Limit)
	assert.Equal(t, 1, resp.Offset)
	require.Len(t, resp.Papers, 2)
	// Newest first; offset 1 skips the newest.
	assert.Equal(t, "2401.00004v1", resp.Papers[0].ArxivID)
}

func TestListPapers_LimitClamped(t *testing.T) {
	s, _ := testServer(t, types.ServerConfig{}, &fakeRefresher{})

	for target, want := range map[string]int{
		"/api/papers?limit=1000":   100,
		"/api/papers?limit=0":      20,
		"/api/papers?limit=-5":     20,
		"/api/papers?limit=potato": 20,
		"/api/papers":              20,
	} {
		w := doRequest(t, s, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Limit int `json:"limit"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, want, resp.Limit, target)
	}
}

func TestListPapers_SummaryNulls(t *testing.T) {
	s, st := testServer(t, types.ServerConfig{}, &fakeRefresher{})

	p := &types.Paper{
		ArxivID:     "2401.00001v1",
		Title:       "Paper",
		PublishedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	p.MarkSummaryNotRun()
	require.NoError(t, st.UpsertAll(context.Background(), []*types.Paper{p}))

	w := doRequest(t, s, http.MethodGet, "/api/papers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `"summary":null`)
	assert.Contains(t, body, `"summary_model":"not-run"`)
	assert.Contains(t, body, `"last_summarized_at":null`)
}

func TestCategories_FallsBackToConfigured(t *testing.T) {
	s, st := testServer(t, types.ServerConfig{}, &fakeRefresher{})

	w := doRequest(t, s, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cs.OS")

	seedPapers(t, st, 1)
	w = doRequest(t, s, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"categories":["cs.DC"]}`, strings.TrimSpace(w.Body.String()))
}

func TestRefresh_AdminToken(t *testing.T) {
	refresher := &fakeRefresher{stats: types.RefreshStats{Fetched: 2, Created: 1}}
	s, _ := testServer(t, types.ServerConfig{AdminToken: "secret"}, refresher)

	w := doRequest(t, s, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, refresher.calls)

	w = doRequest(t, s, http.MethodPost, "/api/refresh", map[string]string{"X-Admin-Token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, s, http.MethodPost, "/api/refresh", map[string]string{"X-Admin-Token": "secret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fetched":2`)
}

func TestRefresh_NoTokenConfigured(t *testing.T) {
	refresher := &fakeRefresher{}
	s, _ := testServer(t, types.ServerConfig{}, refresher)

	w := doRequest(t, s, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, refresher.calls)
}

func TestRefresh_Conflict(t *testing.T) {
	refresher := &fakeRefresher{err: digest.ErrRefreshInProgress}
	s, _ := testServer(t, types.ServerConfig{}, refresher)

	w := doRequest(t, s, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}
