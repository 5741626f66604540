package serve

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/preloadwatch/internal/conf"
	"github.com/tphakala/preloadwatch/internal/notify"
)

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Database = conf.DatabaseSettings{Type: conf.DatabaseSQLite, SQLite: conf.SQLiteSettings{Path: ":memory:"}}
	s.Server = conf.ServerSettings{Listen: "127.0.0.1:0", Seed: true}
	s.Metrics = conf.MetricsSettings{Enabled: true, Path: "/metrics"}
	s.Archive = conf.ArchiveSettings{Enabled: true, InMemory: true}
	s.Notify.HTMLFooter = true
	return s
}

func setupServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(t.Context(), testSettings())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	return rec
}

func TestServerRoutes(t *testing.T) {
	s := setupServer(t)
	h := s.Handler()

	rec := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderXRequestID), "health checks are not units of work")

	rec = get(t, h, "/posts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = get(t, h, "/posts/preloaded")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, h, "/categories")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, h, "/categories/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/categories/999").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/categories/abc").Code)

	// /posts raised an N+1 and /categories an unused preload
	s.dispatcher.Wait()
	rec = get(t, h, "/notices?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	var notices []notify.ArchivedNotice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notices))
	require.Len(t, notices, 2)
	assert.Equal(t, "GET /categories", notices[0].Source)
	assert.Equal(t, []string{"Comments"}, notices[0].Associations)
	assert.Equal(t, "GET /posts", notices[1].Source)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/notices?limit=0").Code)
}

func TestServerIndexFooter(t *testing.T) {
	s := setupServer(t)

	rec := get(t, s.Handler(), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Posts</h1>")
	assert.Contains(t, body, notify.FooterID)
	assert.Contains(t, body, "Post =&gt; [Writer]")
}

func TestServerScenarios(t *testing.T) {
	s := setupServer(t)
	h := s.Handler()

	rec := get(t, h, "/scenarios")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "n-plus-one")

	rec = get(t, h, "/scenarios/has-one")
	require.Equal(t, http.StatusOK, rec.Code)
	var report notify.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Notices, 1)
	assert.Equal(t, "Company", report.Notices[0].Class)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/scenarios/nope").Code)
}

func TestServerMetrics(t *testing.T) {
	s := setupServer(t)
	h := s.Handler()

	get(t, h, "/posts")
	s.dispatcher.Wait()
	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, `preloadwatch_notices_total{class="Post",kind="n_plus_one_query"} 1`)
	assert.Contains(t, text, `preloadwatch_units_of_work_total 1`)
	assert.Contains(t, text, `preloadwatch_notifier_deliveries_total{notifier="archive",status="success"} 1`)
	assert.True(t, strings.Contains(text, `preloadwatch_http_requests_total{method="GET",path="/posts",status_code="200"} 1`))
}

func TestNewRejectsBadDatabase(t *testing.T) {
	settings := testSettings()
	settings.Database.Type = "postgres"
	_, err := New(t.Context(), settings)
	require.Error(t, err)
}
