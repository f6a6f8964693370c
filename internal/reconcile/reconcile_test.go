package reconcile

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/importly/health-dashboard-backend/internal/manifest"
	"github.com/importly/health-dashboard-backend/internal/store"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := store.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRun_CreatesTableWithSyntheticPrimaryKey(t *testing.T) {
	db := openTestDB(t)

	m := &manifest.Manifest{
		Tables: map[string]manifest.TableDefinition{
			"vitals": {
				Columns: []manifest.ColumnDefinition{
					{FieldName: "heart_rate", DataType: "REAL"},
				},
			},
		},
	}

	require.NoError(t, Run(db, m))

	cols, err := introspectColumns(db, "vitals")
	require.NoError(t, err)
	assert.True(t, cols["uuid"])
	assert.True(t, cols["creation_date"])
	assert.True(t, cols["start_date"])
	assert.True(t, cols["end_date"])
	assert.True(t, cols["heart_rate"])
}

func TestRun_IsForwardCompatible(t *testing.T) {
	db := openTestDB(t)

	m1 := &manifest.Manifest{
		Tables: map[string]manifest.TableDefinition{
			"vitals": {Columns: []manifest.ColumnDefinition{{FieldName: "heart_rate", DataType: "REAL"}}},
		},
	}
	require.NoError(t, Run(db, m1))

	_, err := db.Exec(`INSERT INTO vitals (uuid, start_date, heart_rate) VALUES ('a', '2024-01-01T00:00:00Z', 70)`)
	require.NoError(t, err)

	m2 := &manifest.Manifest{
		Tables: map[string]manifest.TableDefinition{
			"vitals": {Columns: []manifest.ColumnDefinition{
				{FieldName: "heart_rate", DataType: "REAL"},
				{FieldName: "hrv_sdnn", DataType: "REAL"},
			}},
		},
	}
	require.NoError(t, Run(db, m2))

	var hr float64
	require.NoError(t, db.Get(&hr, `SELECT heart_rate FROM vitals WHERE uuid = 'a'`))
	assert.Equal(t, 70.0, hr)

	cols, err := introspectColumns(db, "vitals")
	require.NoError(t, err)
	assert.True(t, cols["hrv_sdnn"])
}

func TestRun_CreatesExternalTargetTables(t *testing.T) {
	db := openTestDB(t)

	m := &manifest.Manifest{
		Tables: map[string]manifest.TableDefinition{},
		ExternalSources: &manifest.ExternalSources{
			Ecg: &manifest.EcgConfig{
				Folder:      "electrocardiograms",
				FilePattern: "*.csv",
				TargetTable: "ecg_recordings",
				MetadataMap: []manifest.EcgMetadataMap{{CSVKey: "Recorded Date", DBColumn: "recorded_at", DataType: "TEXT"}},
				Payload:     manifest.EcgPayload{DBColumn: "voltage_samples", DataType: "TEXT"},
			},
			Routes: &manifest.RouteConfig{
				Folder:      "routes",
				FilePattern: "*.gpx",
				TargetTable: "route_points",
				Columns: []manifest.RouteColumn{
					{XMLTag: "time", DBColumn: "timestamp", DataType: "TEXT"},
					{XMLTag: "ele", DBColumn: "elevation", DataType: "REAL"},
				},
			},
		},
	}

	require.NoError(t, Run(db, m))

	ecgCols, err := introspectColumns(db, "ecg_recordings")
	require.NoError(t, err)
	assert.True(t, ecgCols["recorded_at"])
	assert.True(t, ecgCols["voltage_samples"])

	routeCols, err := introspectColumns(db, "route_points")
	require.NoError(t, err)
	assert.True(t, routeCols["timestamp"])
	assert.True(t, routeCols["elevation"])
}
