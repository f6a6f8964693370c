package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/importly/health-dashboard-backend/internal/cclog"
	"github.com/importly/health-dashboard-backend/internal/ingest"
)

type ingestRequest struct {
	FilePath string `json:"file_path"`
}

type ingestResponse struct {
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

// handleIngest accepts a file_path (local path or s3:// URI), starts a
// background ingestion job, and returns its job ID immediately. Admission
// is rate-limited: a burst of ingest requests beyond the configured rate
// gets a 429 rather than stampeding the shared connection pool.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "ingest rate limit exceeded, try again shortly")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cclog.Printf("received ingestion request for: %s", req.FilePath)

	jobID := s.Jobs.Start()

	go s.runIngestJob(jobID, req.FilePath)

	writeJSON(w, http.StatusAccepted, ingestResponse{
		Message: "Ingestion started in background",
		JobID:   jobID,
	})
}

func (s *Server) runIngestJob(jobID, filePath string) {
	ctx := context.Background()

	src, cleanup, err := ingest.OpenSource(ctx, filePath)
	if err != nil {
		cclog.Errorf("ingestion failed for job %s: %v", jobID, err)
		s.Jobs.Fail(jobID, err)
		return
	}
	defer cleanup()
	defer src.Close()

	onProgress := func(count int) {
		s.Jobs.ReportProgress(jobID, count)
	}

	count, err := ingest.ParseAndIngest(src, s.DB, s.Manifest, onProgress)
	if err != nil {
		cclog.Errorf("ingestion failed for job %s: %v", jobID, err)
		s.Jobs.Fail(jobID, err)
		return
	}

	s.Jobs.Complete(jobID, count)
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status, ok := s.Jobs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job id not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
