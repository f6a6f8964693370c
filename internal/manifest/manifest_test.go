package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Minimal(t *testing.T) {
	path := writeManifest(t, `
[tables.records]
columns = [
  { name = "heart_rate", hk_type = "HKQuantityTypeIdentifierHeartRate", aggregate = "avg", data_type = "REAL" },
  { name = "step_count", hk_type = "HKQuantityTypeIdentifierStepCount", aggregate = "sum", data_type = "INTEGER" }
]
`)

	m, err := Load(path)
	require.NoError(t, err)
	require.Contains(t, m.Tables, "records")
	assert.Equal(t, 5000, m.Settings.EffectiveBatchSize())
	assert.Equal(t, 190, m.UserProfile.EffectiveMaxHeartRate())

	cols := m.Tables["records"].Columns
	require.Len(t, cols, 2)
	assert.Equal(t, SourceValue, cols[0].EffectiveExtractionSource())
	assert.Equal(t, AggregateAvg, cols[0].EffectiveAggregate())
}

func TestLoad_RejectsUnknownDataType(t *testing.T) {
	path := writeManifest(t, `
[tables.records]
columns = [
  { name = "bad", data_type = "BLOB" }
]
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsDuplicatePrimaryKeys(t *testing.T) {
	path := writeManifest(t, `
[tables.records]
columns = [
  { name = "a", data_type = "TEXT", is_primary_key = true },
  { name = "b", data_type = "TEXT", is_primary_key = true }
]
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsExpressionReferencingUnknownColumn(t *testing.T) {
	path := writeManifest(t, `
[tables.records]
columns = [
  { name = "heart_rate", data_type = "REAL" },
  { name = "double_hr", data_type = "REAL", expression = "heart_rate * missing_column" }
]
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_AcceptsExpressionReferencingOwnColumns(t *testing.T) {
	path := writeManifest(t, `
[tables.records]
columns = [
  { name = "heart_rate", data_type = "REAL" },
  { name = "double_hr", data_type = "REAL", expression = "heart_rate * 2" }
]
`)
	_, err := Load(path)
	require.NoError(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestManifest_HasTable(t *testing.T) {
	path := writeManifest(t, `
[tables.vitals]
columns = [{ name = "heart_rate", data_type = "REAL" }]

[external_sources.ecg]
folder = "electrocardiograms"
file_pattern = "*.csv"
target_table = "ecg_recordings"
payload = { db_column = "voltage_samples", data_type = "TEXT" }
`)
	m, err := Load(path)
	require.NoError(t, err)

	assert.True(t, m.HasTable("vitals"))
	assert.True(t, m.HasTable("ecg_recordings"))
	assert.False(t, m.HasTable("nonexistent"))
}
