package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/importly/health-dashboard-backend/internal/apperr"
)

// handleECG returns one ECG recording's metadata plus its voltage samples,
// optionally downsampled with ?downsample=N (keep every Nth sample) so a
// chart client isn't forced to pull tens of thousands of points.
func (s *Server) handleECG(w http.ResponseWriter, r *http.Request) {
	cfg := s.Manifest.ExternalSources
	if cfg == nil || cfg.Ecg == nil {
		writeError(w, http.StatusNotFound, "ECG import is not configured")
		return
	}

	id := mux.Vars(r)["id"]
	table := cfg.Ecg.TargetTable
	payloadCol := cfg.Ecg.Payload.DBColumn

	row, err := s.DB.Queryx("SELECT * FROM "+quoteTable(table)+" WHERE id = ?", id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer row.Close()

	if !row.Next() {
		writeAppError(w, apperr.New(apperr.KindNotFound, "ecg recording not found: "+id))
		return
	}

	result, err := row.SliceScan()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cols, err := row.Columns()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	record := make(map[string]interface{}, len(cols))
	var payload string
	for i, col := range cols {
		if col == payloadCol {
			if b, ok := result[i].([]byte); ok {
				payload = string(b)
			} else if sv, ok := result[i].(string); ok {
				payload = sv
			}
			continue
		}
		if b, ok := result[i].([]byte); ok {
			record[col] = string(b)
		} else {
			record[col] = result[i]
		}
	}

	downsample := 1
	if v := r.URL.Query().Get("downsample"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			downsample = n
		}
	}

	samples := make([]float64, 0)
	for i, field := range strings.Split(payload, ",") {
		if i%downsample != 0 {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			continue
		}
		samples = append(samples, f)
	}

	record["voltage_samples"] = samples
	writeJSON(w, http.StatusOK, record)
}

func quoteTable(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
