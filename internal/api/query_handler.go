package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/importly/health-dashboard-backend/internal/query"
)

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	if !s.Manifest.HasTable(table) {
		writeError(w, http.StatusNotFound, "unknown table: "+table)
		return
	}

	q := r.URL.Query()
	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sortCol := q.Get("sort")

	rows, err := query.QueryTable(s.DB, s.Manifest, table, limit, sortCol, q.Get("start"), q.Get("end"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	if !s.Manifest.HasTable(table) {
		writeError(w, http.StatusNotFound, "unknown table: "+table)
		return
	}

	q := r.URL.Query()
	bucket := q.Get("bucket")
	if bucket == "" {
		bucket = "day"
	}

	rows, err := query.AggregateTable(s.DB, s.Manifest, table, bucket, q.Get("start"), q.Get("end"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	if !s.Manifest.HasTable(table) {
		writeError(w, http.StatusNotFound, "unknown table: "+table)
		return
	}

	csv, err := query.ExportTableToCSV(s.DB, table)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, table))
	w.Write([]byte(csv))
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	trends, err := query.GetBiometricTrends(s.DB, s.Manifest, q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (s *Server) handleWorkoutDetails(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	details, err := query.GetWorkoutDetails(s.DB, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleWorkoutIntensity(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	intensity, err := query.GetWorkoutIntensity(s.DB, s.Manifest, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intensity)
}

func (s *Server) handleRecovery(w http.ResponseWriter, r *http.Request) {
	analysis, err := query.GetRecoveryAnalysis(s.DB)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleSleep(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		summary map[string]interface{}
		err     error
	)
	if from, to := q.Get("from"), q.Get("to"); from != "" && to != "" {
		summary, err = query.GetSleepSummaryWindowed(s.DB, from, to)
	} else {
		date := q.Get("date")
		summary, err = query.GetSleepSummary(s.DB, date)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := query.GetDBSummary(s.DB, s.Manifest, s.DatabasePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
