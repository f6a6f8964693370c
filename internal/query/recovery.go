package query

import (
	"database/sql"
	"math"

	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/apperr"
)

// GetRecoveryAnalysis scores daily recovery from HRV and resting-heart-rate
// trends: current-vs-7-day-baseline HRV sets the base score, elevated
// current RHR subtracts 5 points per beat above baseline, and the result is
// clamped to [0, 100].
func GetRecoveryAnalysis(db *sqlx.DB) (map[string]interface{}, error) {
	baselineHRV, err := queryAvgOrZero(db, "SELECT AVG(hrv_sdnn) FROM vitals WHERE hrv_sdnn > 0 AND start_date >= date('now', '-7 days')")
	if err != nil {
		return nil, err
	}
	currentHRV, err := queryAvgOrZero(db, "SELECT AVG(hrv_sdnn) FROM vitals WHERE hrv_sdnn > 0 AND start_date >= date('now', '-1 day')")
	if err != nil {
		return nil, err
	}
	baselineRHR, err := queryAvgOrZero(db, "SELECT AVG(resting_hr) FROM vitals WHERE resting_hr > 0 AND start_date >= date('now', '-7 days')")
	if err != nil {
		return nil, err
	}
	currentRHR, err := queryAvgOrZero(db, "SELECT AVG(resting_hr) FROM vitals WHERE resting_hr > 0 AND start_date >= date('now', '-1 day')")
	if err != nil {
		return nil, err
	}

	score := 0.0
	if baselineHRV > 0 {
		score = (currentHRV / baselineHRV) * 100.0
	}
	if currentRHR > baselineRHR && baselineRHR > 0 {
		diff := currentRHR - baselineRHR
		score -= diff * 5.0
	}

	finalScore := int(math.Round(clamp(score, 0, 100)))

	var status string
	switch {
	case finalScore > 80:
		status = "Optimal"
	case finalScore > 50:
		status = "Good"
	case finalScore > 30:
		status = "Strained"
	default:
		status = "Recovery Needed"
	}

	return map[string]interface{}{
		"recovery_score": finalScore,
		"status":         status,
		"metrics": map[string]interface{}{
			"hrv_baseline": baselineHRV,
			"hrv_current":  currentHRV,
			"rhr_baseline": baselineRHR,
			"rhr_current":  currentRHR,
		},
	}, nil
}

func queryAvgOrZero(db *sqlx.DB, query string) (float64, error) {
	var v sql.NullFloat64
	if err := db.QueryRowx(query).Scan(&v); err != nil {
		return 0, apperr.Wrap(apperr.KindDB, "query recovery metric", err)
	}
	if !v.Valid {
		return 0, nil
	}
	return v.Float64, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
