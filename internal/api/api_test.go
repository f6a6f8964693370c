package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/importly/health-dashboard-backend/internal/jobs"
	"github.com/importly/health-dashboard-backend/internal/manifest"
	"github.com/importly/health-dashboard-backend/internal/reconcile"
	"github.com/importly/health-dashboard-backend/internal/store"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := &manifest.Manifest{
		Tables: map[string]manifest.TableDefinition{
			"vitals": {
				Columns: []manifest.ColumnDefinition{
					{FieldName: "heart_rate", DataType: "REAL", HKIdentifier: "HKQuantityTypeIdentifierHeartRate"},
				},
			},
		},
	}
	require.NoError(t, reconcile.Run(db, m))

	return NewServer(db, m, jobs.NewRegistry(), t.TempDir(), ":memory:", 100.0)
}

func TestHandleHealth_ReturnsHealthy(t *testing.T) {
	s := setupTestServer(t)
	r := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleGetData_UnknownTableReturns404(t *testing.T) {
	s := setupTestServer(t)
	r := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/data/no_such_table", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetData_ReturnsInsertedRows(t *testing.T) {
	s := setupTestServer(t)
	_, err := s.DB.Exec(`INSERT INTO vitals (uuid, start_date, heart_rate) VALUES ('a', '2024-01-01T00:00:00Z', 72)`)
	require.NoError(t, err)

	r := s.Router()
	req := httptest.NewRequest(http.MethodGet, "/api/data/vitals", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.InDelta(t, 72.0, rows[0]["heart_rate"], 0.001)
}

func TestHandleIngest_StartsJobAndReportsStatus(t *testing.T) {
	s := setupTestServer(t)
	r := s.Router()

	body, err := json.Marshal(map[string]string{"file_path": "/nonexistent/export.xml"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)

	require.Eventually(t, func() bool {
		status, ok := s.Jobs.Get(resp.JobID)
		return ok && status.Stage == jobs.StateFailed
	}, 2*time.Second, 10*time.Millisecond, "ingest of a missing file should transition to Failed")

	req2 := httptest.NewRequest(http.MethodGet, "/api/ingest/status/"+resp.JobID, nil)
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestHandleIngestStatus_UnknownJobReturns404(t *testing.T) {
	s := setupTestServer(t)
	r := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/ingest/status/does-not-exist", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSummary_ReturnsTableCounts(t *testing.T) {
	s := setupTestServer(t)
	r := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["tables"], "vitals")
}
