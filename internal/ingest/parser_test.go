package ingest

import (
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/importly/health-dashboard-backend/internal/manifest"
	"github.com/importly/health-dashboard-backend/internal/reconcile"
	"github.com/importly/health-dashboard-backend/internal/store"
)

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Settings: &manifest.Settings{BatchSize: 2},
		Tables: map[string]manifest.TableDefinition{
			"vitals": {
				Columns: []manifest.ColumnDefinition{
					{FieldName: "heart_rate", DataType: "REAL", HKIdentifier: "HKQuantityTypeIdentifierHeartRate"},
				},
			},
			"activity_summaries": {
				Columns: []manifest.ColumnDefinition{
					{FieldName: "active_energy_burned", DataType: "REAL", HKAttribute: "activeEnergyBurned"},
				},
			},
			"workouts": {
				Columns: []manifest.ColumnDefinition{
					{FieldName: "session_id", DataType: "TEXT", IsPrimaryKey: true},
					{FieldName: "workout_type", DataType: "TEXT", HKAttribute: "workoutActivityType", ExtractionSrc: manifest.SourceAttribute},
					{FieldName: "total_distance", DataType: "REAL", HKIdentifier: "HKQuantityTypeIdentifierDistanceWalkingRunning", ExtractionSrc: manifest.SourceStatisticsSum},
					{FieldName: "weather_temp", DataType: "TEXT", HKIdentifier: "HKWeatherTemperature", ExtractionSrc: manifest.SourceMetadataValue},
					{FieldName: "route_file", DataType: "TEXT", ExtractionSrc: manifest.SourceRouteRef},
				},
			},
		},
	}
}

func openIngestTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := store.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

const sampleExportXML = `<?xml version="1.0" encoding="UTF-8"?>
<HealthData locale="en_US">
 <Record type="HKQuantityTypeIdentifierHeartRate" sourceName="Watch" unit="count/min" creationDate="2024-01-01 08:00:00 -0500" startDate="2024-01-01 08:00:00 -0500" endDate="2024-01-01 08:00:00 -0500" value="62"/>
 <Record type="HKQuantityTypeIdentifierHeartRate" sourceName="Watch" unit="count/min" creationDate="2024-01-01 08:01:00 -0500" startDate="2024-01-01 08:01:00 -0500" endDate="2024-01-01 08:01:00 -0500" value="64"/>
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="Watch" unit="count" creationDate="2024-01-01 08:01:00 -0500" startDate="2024-01-01 08:01:00 -0500" endDate="2024-01-01 08:01:00 -0500" value="20"/>
 <ActivitySummary activeEnergyBurned="450" dateComponents="2024-01-01"/>
 <Workout workoutActivityType="HKWorkoutActivityTypeRunning" startDate="2024-01-01 09:00:00 -0500" endDate="2024-01-01 09:30:00 -0500" creationDate="2024-01-01 09:30:00 -0500">
  <WorkoutStatistics type="HKQuantityTypeIdentifierDistanceWalkingRunning" sum="5.2"/>
  <MetadataEntry key="HKWeatherTemperature" value="15C"/>
  <FileReference path="/workout-routes/route_2024-01-01.gpx"/>
 </Workout>
</HealthData>`

func TestParseAndIngest_EndToEnd(t *testing.T) {
	db := openIngestTestDB(t)
	m := testManifest()
	require.NoError(t, reconcile.Run(db, m))

	var progressCalls []int
	count, err := ParseAndIngest(strings.NewReader(sampleExportXML), db, m, func(c int) {
		progressCalls = append(progressCalls, c)
	})
	require.NoError(t, err)
	assert.Equal(t, 4, count) // 2 heart rate + 1 activity summary + 1 workout (steps unmapped)

	var hrCount int
	require.NoError(t, db.Get(&hrCount, "SELECT COUNT(*) FROM vitals"))
	assert.Equal(t, 2, hrCount)

	var workoutType string
	require.NoError(t, db.Get(&workoutType, "SELECT workout_type FROM workouts"))
	assert.Equal(t, "HKWorkoutActivityTypeRunning", workoutType)

	var distance float64
	require.NoError(t, db.Get(&distance, "SELECT total_distance FROM workouts"))
	assert.InDelta(t, 5.2, distance, 0.001)

	var routeFile string
	require.NoError(t, db.Get(&routeFile, "SELECT route_file FROM workouts"))
	assert.Equal(t, "route_2024-01-01.gpx", routeFile)
}

func TestParseAndIngest_IsIdempotentOnReingest(t *testing.T) {
	db := openIngestTestDB(t)
	m := testManifest()
	require.NoError(t, reconcile.Run(db, m))

	_, err := ParseAndIngest(strings.NewReader(sampleExportXML), db, m, nil)
	require.NoError(t, err)

	_, err = ParseAndIngest(strings.NewReader(sampleExportXML), db, m, nil)
	require.NoError(t, err)

	var hrCount int
	require.NoError(t, db.Get(&hrCount, "SELECT COUNT(*) FROM vitals"))
	assert.Equal(t, 2, hrCount, "re-ingesting the same export must not duplicate rows")
}

func TestExtractWorkout_EOFBeforeClosingTagIsParseError(t *testing.T) {
	db := openIngestTestDB(t)
	m := testManifest()
	require.NoError(t, reconcile.Run(db, m))

	truncated := `<?xml version="1.0" encoding="UTF-8"?>
<HealthData locale="en_US">
 <Workout workoutActivityType="HKWorkoutActivityTypeRunning" startDate="2024-01-01 09:00:00 -0500" endDate="2024-01-01 09:30:00 -0500" creationDate="2024-01-01 09:30:00 -0500">
  <WorkoutStatistics type="HKQuantityTypeIdentifierDistanceWalkingRunning" sum="5.2"/>`

	_, err := ParseAndIngest(strings.NewReader(truncated), db, m, nil)
	require.Error(t, err)
}
