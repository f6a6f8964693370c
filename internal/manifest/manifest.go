// Package manifest loads and validates the declarative manifest that drives
// schema reconciliation, ingestion mapping, and analytics column behavior.
// It is the single source of truth described in spec section "DATA MODEL".
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/expr-lang/expr"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/importly/health-dashboard-backend/internal/apperr"
)

// ExtractionSource selects which piece of an XML element produces a column's value.
type ExtractionSource string

const (
	SourceValue         ExtractionSource = "value"
	SourceAttribute     ExtractionSource = "attribute"
	SourceStatisticsSum ExtractionSource = "statistics_sum"
	SourceMetadataValue ExtractionSource = "metadata_value"
	SourceRouteRef      ExtractionSource = "route_ref"
)

// Aggregate selects how a column is combined in time-bucketed queries.
type Aggregate string

const (
	AggregateRaw Aggregate = "raw"
	AggregateAvg Aggregate = "avg"
	AggregateSum Aggregate = "sum"
	AggregateMin Aggregate = "min"
	AggregateMax Aggregate = "max"
	AggregateCnt Aggregate = "count"
)

// ColumnDefinition is one entry in a table's ordered column list.
type ColumnDefinition struct {
	FieldName       string           `toml:"name"`
	DataType        string           `toml:"data_type"`
	HKIdentifier    string           `toml:"hk_type"`
	HKAttribute     string           `toml:"hk_attribute"`
	IsPrimaryKey    bool             `toml:"is_primary_key"`
	ExtractionSrc   ExtractionSource `toml:"extraction_source"`
	Aggregate       Aggregate        `toml:"aggregate"`
	Expression      string           `toml:"expression"`
}

// EffectiveExtractionSource returns the declared extraction source, defaulting to "value".
func (c ColumnDefinition) EffectiveExtractionSource() ExtractionSource {
	if c.ExtractionSrc == "" {
		return SourceValue
	}
	return c.ExtractionSrc
}

// EffectiveAggregate returns the declared aggregate, defaulting to "raw".
func (c ColumnDefinition) EffectiveAggregate() Aggregate {
	if c.Aggregate == "" {
		return AggregateRaw
	}
	return c.Aggregate
}

// TableDefinition describes one manifest-defined table.
type TableDefinition struct {
	Description string             `toml:"description"`
	Columns     []ColumnDefinition `toml:"columns"`
}

// PrimaryKey returns the manifest-declared primary-key column, if any.
func (t TableDefinition) PrimaryKey() (ColumnDefinition, bool) {
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			return c, true
		}
	}
	return ColumnDefinition{}, false
}

// Settings holds optional global ingestion settings.
type Settings struct {
	BatchSize  int      `toml:"batch_size"`
	Timezone   string   `toml:"timezone"`
	ImportDirs []string `toml:"import_dirs"`
}

// EffectiveBatchSize returns the configured batch size, defaulting to 5000.
func (s *Settings) EffectiveBatchSize() int {
	if s == nil || s.BatchSize <= 0 {
		return 5000
	}
	return s.BatchSize
}

// UserProfile holds analytics parameters about the device owner.
type UserProfile struct {
	MaxHeartRate     int `toml:"max_heart_rate"`
	RestingHeartRate int `toml:"resting_heart_rate"`
}

// EffectiveMaxHeartRate returns the configured max HR, defaulting to 190.
func (u *UserProfile) EffectiveMaxHeartRate() int {
	if u == nil || u.MaxHeartRate <= 0 {
		return 190
	}
	return u.MaxHeartRate
}

// EcgMetadataMap maps one CSV header key to a database column.
type EcgMetadataMap struct {
	CSVKey   string `toml:"csv_key"`
	DBColumn string `toml:"db_column"`
	DataType string `toml:"data_type"`
}

// EcgPayload configures the single column that stores joined sample lines.
type EcgPayload struct {
	DBColumn   string `toml:"db_column"`
	DataType   string `toml:"data_type"`
	SourceUnit string `toml:"source_unit"`
}

// EcgConfig configures the ECG external importer.
type EcgConfig struct {
	Folder      string           `toml:"folder"`
	FilePattern string           `toml:"file_pattern"`
	TargetTable string           `toml:"target_table"`
	MetadataMap []EcgMetadataMap `toml:"metadata_map"`
	Payload     EcgPayload       `toml:"payload"`
}

// RouteColumn maps one GPX XML tag to a database column.
type RouteColumn struct {
	XMLTag   string `toml:"xml_tag"`
	DBColumn string `toml:"db_column"`
	DataType string `toml:"data_type"`
}

// RouteConfig configures the GPX route external importer.
type RouteConfig struct {
	Folder      string        `toml:"folder"`
	FilePattern string        `toml:"file_pattern"`
	TargetTable string        `toml:"target_table"`
	Columns     []RouteColumn `toml:"columns"`
}

// ExternalSources groups the optional ECG and route importer configs.
type ExternalSources struct {
	Ecg    *EcgConfig   `toml:"ecg"`
	Routes *RouteConfig `toml:"routes"`
}

// Manifest is the fully parsed, validated declarative schema/ingestion config.
type Manifest struct {
	Settings        *Settings                  `toml:"settings"`
	UserProfile     *UserProfile                `toml:"user_profile"`
	Tables          map[string]TableDefinition  `toml:"tables"`
	ExternalSources *ExternalSources            `toml:"external_sources"`
}

// Table looks up a manifest table, returning ok=false if undeclared.
func (m *Manifest) Table(name string) (TableDefinition, bool) {
	t, ok := m.Tables[name]
	return t, ok
}

// HasTable reports whether name is a manifest table or a configured external target table.
func (m *Manifest) HasTable(name string) bool {
	if _, ok := m.Tables[name]; ok {
		return true
	}
	if m.ExternalSources != nil {
		if m.ExternalSources.Ecg != nil && m.ExternalSources.Ecg.TargetTable == name {
			return true
		}
		if m.ExternalSources.Routes != nil && m.ExternalSources.Routes.TargetTable == name {
			return true
		}
	}
	return false
}

// Load reads, parses, and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "failed to read manifest", err)
	}

	var m Manifest
	if _, err := toml.Decode(string(raw), &m); err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "failed to parse manifest toml", err)
	}

	if err := validateSchema(raw); err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "manifest failed schema validation", err)
	}

	if err := validateSemantics(&m); err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "manifest failed semantic validation", err)
	}

	return &m, nil
}

// validateSchema re-parses the manifest as a generic document and checks it
// against an embedded JSON Schema, catching structural mistakes (missing
// required fields, wrong types) before they reach DDL generation.
func validateSchema(raw []byte) error {
	var doc map[string]interface{}
	if _, err := toml.Decode(string(raw), &doc); err != nil {
		return err
	}

	asJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("re-marshal manifest to json: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("manifest.json", bytes.NewReader([]byte(manifestSchemaJSON))); err != nil {
		return fmt.Errorf("load embedded manifest schema: %w", err)
	}
	schema, err := compiler.Compile("manifest.json")
	if err != nil {
		return fmt.Errorf("compile embedded manifest schema: %w", err)
	}

	var instance interface{}
	if err := json.Unmarshal(asJSON, &instance); err != nil {
		return err
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// validateSemantics enforces invariants the JSON Schema cannot express: at
// most one primary key per table, and that any generated-column expression
// only references that table's own column names.
func validateSemantics(m *Manifest) error {
	for tableName, table := range m.Tables {
		pkCount := 0
		known := make(map[string]bool, len(table.Columns)+3)
		known["uuid"] = true
		known["creation_date"] = true
		known["start_date"] = true
		known["end_date"] = true
		for _, c := range table.Columns {
			if c.IsPrimaryKey {
				pkCount++
			}
			if c.DataType != "INTEGER" && c.DataType != "REAL" && c.DataType != "TEXT" {
				return fmt.Errorf("table %q column %q: unknown data_type %q", tableName, c.FieldName, c.DataType)
			}
			known[c.FieldName] = true
		}
		if pkCount > 1 {
			return fmt.Errorf("table %q declares %d primary key columns, at most one is allowed", tableName, pkCount)
		}
		for _, c := range table.Columns {
			if c.Expression == "" {
				continue
			}
			if err := whitelistExpression(c.Expression, known); err != nil {
				return fmt.Errorf("table %q column %q expression %q: %w", tableName, c.FieldName, c.Expression, err)
			}
		}
	}
	return nil
}

// whitelistExpression compiles expr against an environment containing only
// the known column names, rejecting any identifier, call, or operator it
// cannot resolve. The expression text itself (not the compiled program) is
// what is later spliced into the generated-column DDL; this is purely a
// safety gate matching the manifest's identifier-whitelisting design note.
func whitelistExpression(expression string, known map[string]bool) error {
	env := make(map[string]interface{}, len(known))
	for name := range known {
		env[name] = 0.0
	}
	// expr.Compile type-checks every identifier against env at compile time;
	// an expression referencing a column outside this table fails here,
	// before the string is ever spliced into a GENERATED ALWAYS AS clause.
	if _, err := expr.Compile(expression, expr.Env(env)); err != nil {
		return err
	}
	return nil
}
