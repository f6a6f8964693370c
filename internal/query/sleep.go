package query

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/apperr"
)

var sleepStageNames = map[int64]string{
	0: "In Bed",
	1: "Asleep",
	2: "Awake",
	3: "Core",
	4: "Deep",
	5: "REM",
}

// GetSleepSummary buckets sleep-stage durations (seconds, summed by stage
// name) for every sleep row whose start_date falls on date (a "YYYY-MM-DD"
// prefix match against start_date, the default windowing scheme; see
// GetSleepSummaryWindowed for the explicit [from, to) variant).
func GetSleepSummary(db *sqlx.DB, date string) (map[string]interface{}, error) {
	rows, err := db.Queryx(
		"SELECT sleep_stage, start_date, end_date FROM sleep WHERE start_date LIKE ? ORDER BY start_date ASC",
		date+"%",
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDB, "query sleep records", err)
	}
	return summarizeSleepRows(rows, date)
}

// GetSleepSummaryWindowed is the additive windowed variant: instead of a
// LIKE-prefix match against a single calendar date, it sums sleep-stage
// durations for every row in [from, to). Both variants coexist; callers
// choose based on whether they have a single date or an explicit window.
func GetSleepSummaryWindowed(db *sqlx.DB, from, to string) (map[string]interface{}, error) {
	rows, err := db.Queryx(
		"SELECT sleep_stage, start_date, end_date FROM sleep WHERE start_date >= ? AND start_date < ? ORDER BY start_date ASC",
		from, to,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDB, "query sleep records", err)
	}
	return summarizeSleepRows(rows, from)
}

func summarizeSleepRows(rows *sqlx.Rows, label string) (map[string]interface{}, error) {
	defer rows.Close()

	staging := make(map[string]float64)
	var totalSeconds float64

	for rows.Next() {
		var stage int64
		var start, end string
		if err := rows.Scan(&stage, &start, &end); err != nil {
			return nil, err
		}

		sDT, errS := time.Parse(time.RFC3339, start)
		eDT, errE := time.Parse(time.RFC3339, end)
		if errS != nil || errE != nil {
			continue
		}

		duration := eDT.Sub(sDT).Seconds()
		name, ok := sleepStageNames[stage]
		if !ok {
			name = "Unknown"
		}
		staging[name] += duration
		totalSeconds += duration
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	breakdown := make(map[string]interface{}, len(staging))
	for k, v := range staging {
		breakdown[k] = v
	}

	return map[string]interface{}{
		"date":              label,
		"total_sleep_hours": totalSeconds / 3600.0,
		"breakdown":         breakdown,
	}, nil
}
