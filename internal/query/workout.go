package query

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/apperr"
	"github.com/importly/health-dashboard-backend/internal/geo"
	"github.com/importly/health-dashboard-backend/internal/manifest"
)

// GetWorkoutDetails fetches a single workout row by session_id and, if it
// references a route file, enriches it with the ordered route points plus
// the cumulative haversine distance (km) and monotonic elevation gain (m)
// along the track.
func GetWorkoutDetails(db *sqlx.DB, sessionID string) (map[string]interface{}, error) {
	rows, err := db.Queryx("SELECT * FROM workouts WHERE session_id = ?", sessionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDB, "query workout", err)
	}
	workouts, err := rowsToMaps(rows)
	if err != nil {
		return nil, err
	}
	if len(workouts) == 0 {
		return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("workout %q not found", sessionID))
	}
	workout := workouts[0]

	routeFile, _ := workout["route_file"].(string)
	if routeFile == "" {
		return workout, nil
	}

	pointRows, err := db.Queryx(
		"SELECT timestamp, latitude, longitude, elevation, speed_ms FROM route_points WHERE file_name = ? ORDER BY timestamp ASC",
		routeFile,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDB, "query route points", err)
	}
	points, err := rowsToMaps(pointRows)
	if err != nil {
		return nil, err
	}

	var totalDistanceM, totalElevationGainM float64
	var havePrev bool
	var prevLat, prevLon, prevElev float64

	for _, p := range points {
		lat := asFloat(p["latitude"])
		lon := asFloat(p["longitude"])
		elev := asFloat(p["elevation"])

		if havePrev {
			totalDistanceM += geo.HaversineMeters(prevLat, prevLon, lat, lon)
			if elev > prevElev {
				totalElevationGainM += elev - prevElev
			}
		}
		prevLat, prevLon, prevElev = lat, lon, elev
		havePrev = true
	}

	workout["route_points"] = points
	workout["calculated_distance_km"] = totalDistanceM / 1000.0
	workout["calculated_elevation_gain_m"] = totalElevationGainM

	return workout, nil
}

// GetWorkoutIntensity buckets every heart-rate sample recorded during the
// workout's [start_date, end_date] window into the 5 standard HR zones
// relative to the manifest's configured (or default 190) max heart rate.
func GetWorkoutIntensity(db *sqlx.DB, m *manifest.Manifest, sessionID string) (map[string]interface{}, error) {
	var startDate, endDate string
	if err := db.QueryRowx("SELECT start_date, end_date FROM workouts WHERE session_id = ?", sessionID).
		Scan(&startDate, &endDate); err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, fmt.Sprintf("workout %q not found", sessionID), err)
	}

	rows, err := db.Queryx(
		"SELECT heart_rate FROM vitals WHERE heart_rate > 0 AND start_date >= ? AND start_date <= ?",
		startDate, endDate,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDB, "query heart rate samples", err)
	}
	defer rows.Close()

	maxHR := float64(m.UserProfile.EffectiveMaxHeartRate())

	zones := map[string]int{
		"Z1_Recovery":  0,
		"Z2_Aerobic":   0,
		"Z3_Steady":    0,
		"Z4_Threshold": 0,
		"Z5_Anaerobic": 0,
	}

	sampleCount := 0
	for rows.Next() {
		var hr float64
		if err := rows.Scan(&hr); err != nil {
			return nil, err
		}
		sampleCount++
		pct := (hr / maxHR) * 100.0
		switch {
		case pct < 60.0:
			zones["Z1_Recovery"]++
		case pct < 70.0:
			zones["Z2_Aerobic"]++
		case pct < 80.0:
			zones["Z3_Steady"]++
		case pct < 90.0:
			zones["Z4_Threshold"]++
		default:
			zones["Z5_Anaerobic"]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"session_id":   sessionID,
		"sample_count": sampleCount,
		"max_hr_used":  maxHR,
		"zones":        zones,
	}, nil
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}
