// Package api is the thin HTTP shell (spec section 6): it has no business
// logic of its own, only request parsing, manifest/table-existence checks,
// and delegation to internal/ingest, internal/external, internal/query, and
// internal/jobs.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"github.com/importly/health-dashboard-backend/internal/jobs"
	"github.com/importly/health-dashboard-backend/internal/manifest"
	"github.com/importly/health-dashboard-backend/internal/metrics"
)

// Server holds every dependency a handler needs: the DB pool, the parsed
// manifest, the job registry, and the external-import base directory.
type Server struct {
	DB                *sqlx.DB
	Manifest          *manifest.Manifest
	Jobs              *jobs.Registry
	ExternalImportDir string
	DatabasePath      string
	limiter           *rate.Limiter
}

// NewServer constructs a Server with an ingest rate limiter admitting
// ratePerSecond new ingestion starts per second (burst of 1), matching the
// "few concurrent ingestions" concurrency note.
func NewServer(db *sqlx.DB, m *manifest.Manifest, registry *jobs.Registry, externalImportDir, databasePath string, ratePerSecond float64) *Server {
	return &Server{
		DB:                db,
		Manifest:          m,
		Jobs:              registry,
		ExternalImportDir: externalImportDir,
		DatabasePath:      databasePath,
		limiter:           rate.NewLimiter(rate.Limit(ratePerSecond), 1),
	}
}

// Router builds the full route table and wraps it with the Prometheus
// /metrics endpoint and permissive CORS, both ambient shell concerns.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ingest", s.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/api/ingest/status/{id}", s.handleIngestStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/import/external", s.handleExternalImport).Methods(http.MethodPost)
	r.HandleFunc("/api/data/{table}", s.handleGetData).Methods(http.MethodGet)
	r.HandleFunc("/api/aggregate/{table}", s.handleAggregate).Methods(http.MethodGet)
	r.HandleFunc("/api/export/{table}", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/api/trends", s.handleTrends).Methods(http.MethodGet)
	r.HandleFunc("/api/workouts/{id}", s.handleWorkoutDetails).Methods(http.MethodGet)
	r.HandleFunc("/api/workouts/{id}/intensity", s.handleWorkoutIntensity).Methods(http.MethodGet)
	r.HandleFunc("/api/analysis/recovery", s.handleRecovery).Methods(http.MethodGet)
	r.HandleFunc("/api/analysis/sleep", s.handleSleep).Methods(http.MethodGet)
	r.HandleFunc("/api/ecg/{id}", s.handleECG).Methods(http.MethodGet)
	r.HandleFunc("/api/summary", s.handleSummary).Methods(http.MethodGet)
	r.Handle("/metrics", promHandler())

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	return cors(r)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Digital Physiologist Backend Online"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
