// Package reconcile implements the manifest-driven schema reconciler
// (spec section 4.1): creating tables and indices that don't exist yet and
// adding manifest columns that are missing from an existing table, without
// ever dropping or rewriting a column the manifest no longer mentions.
package reconcile

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/apperr"
	"github.com/importly/health-dashboard-backend/internal/cclog"
	"github.com/importly/health-dashboard-backend/internal/manifest"
)

// Run brings the database at db into alignment with m: creates missing
// tables (with a synthetic uuid primary key if the manifest declares none),
// adds missing columns (including virtual generated columns), ensures a
// start_date index per table, and creates the external-source target
// tables if configured. All DDL failures are fatal per spec section 4.1.
func Run(db *sqlx.DB, m *manifest.Manifest) error {
	for tableName, table := range m.Tables {
		if err := ensureBaseTable(db, tableName, table); err != nil {
			return apperr.Wrap(apperr.KindSchema, fmt.Sprintf("failed to create base table %q", tableName), err)
		}

		existing, err := introspectColumns(db, tableName)
		if err != nil {
			return apperr.Wrap(apperr.KindSchema, fmt.Sprintf("failed to introspect table %q", tableName), err)
		}

		for _, col := range table.Columns {
			if existing[col.FieldName] {
				continue
			}
			if err := addColumn(db, tableName, col); err != nil {
				return apperr.Wrap(apperr.KindSchema, fmt.Sprintf("failed to add column %q to table %q", col.FieldName, tableName), err)
			}
			cclog.Printf("added column %s.%s (%s)", tableName, col.FieldName, col.DataType)
		}

		if err := ensureStartDateIndex(db, tableName); err != nil {
			return apperr.Wrap(apperr.KindSchema, fmt.Sprintf("failed to index table %q", tableName), err)
		}
	}

	if m.ExternalSources != nil {
		if m.ExternalSources.Ecg != nil {
			if err := ensureEcgTable(db, m.ExternalSources.Ecg); err != nil {
				return apperr.Wrap(apperr.KindSchema, "failed to create ecg target table", err)
			}
		}
		if m.ExternalSources.Routes != nil {
			if err := ensureRouteTable(db, m.ExternalSources.Routes); err != nil {
				return apperr.Wrap(apperr.KindSchema, "failed to create route target table", err)
			}
		}
	}

	return nil
}

func ensureBaseTable(db *sqlx.DB, tableName string, table manifest.TableDefinition) error {
	var createSQL string
	if pk, ok := table.PrimaryKey(); ok {
		createSQL = fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (%s %s PRIMARY KEY, creation_date TEXT, start_date TEXT, end_date TEXT)",
			quoteIdent(tableName), quoteIdent(pk.FieldName), pk.DataType,
		)
	} else {
		createSQL = fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (uuid TEXT PRIMARY KEY, creation_date TEXT, start_date TEXT, end_date TEXT)",
			quoteIdent(tableName),
		)
	}
	_, err := db.Exec(createSQL)
	return err
}

func introspectColumns(db *sqlx.DB, tableName string) (map[string]bool, error) {
	rows, err := db.Queryx(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(tableName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		result := make(map[string]interface{})
		if err := rows.MapScan(result); err != nil {
			return nil, err
		}
		name, _ := result["name"].(string)
		if name == "" {
			if b, ok := result["name"].([]byte); ok {
				name = string(b)
			}
		}
		if name != "" {
			existing[name] = true
		}
	}
	return existing, rows.Err()
}

func addColumn(db *sqlx.DB, tableName string, col manifest.ColumnDefinition) error {
	var alterSQL string
	if col.Expression != "" {
		alterSQL = fmt.Sprintf(
			"ALTER TABLE %s ADD COLUMN %s %s GENERATED ALWAYS AS (%s) VIRTUAL",
			quoteIdent(tableName), quoteIdent(col.FieldName), col.DataType, col.Expression,
		)
	} else {
		alterSQL = fmt.Sprintf(
			"ALTER TABLE %s ADD COLUMN %s %s",
			quoteIdent(tableName), quoteIdent(col.FieldName), col.DataType,
		)
	}
	_, err := db.Exec(alterSQL)
	return err
}

func ensureStartDateIndex(db *sqlx.DB, tableName string) error {
	idxSQL := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_start_date ON %s (start_date)",
		sanitizeIdentForIndexName(tableName), quoteIdent(tableName),
	)
	_, err := db.Exec(idxSQL)
	return err
}

func ensureEcgTable(db *sqlx.DB, cfg *manifest.EcgConfig) error {
	cols := []string{
		"id INTEGER PRIMARY KEY AUTOINCREMENT",
		"file_name TEXT UNIQUE",
		"sample_count INTEGER",
		"mean_voltage REAL",
		"calculated_hr REAL",
	}
	for _, meta := range cfg.MetadataMap {
		cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(meta.DBColumn), meta.DataType))
	}
	cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(cfg.Payload.DBColumn), cfg.Payload.DataType))

	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(cfg.TargetTable), joinCols(cols))
	_, err := db.Exec(createSQL)
	return err
}

func ensureRouteTable(db *sqlx.DB, cfg *manifest.RouteConfig) error {
	cols := []string{
		"id INTEGER PRIMARY KEY AUTOINCREMENT",
		"file_name TEXT",
	}
	for _, c := range cfg.Columns {
		cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(c.DBColumn), c.DataType))
	}

	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(cfg.TargetTable), joinCols(cols))
	if _, err := db.Exec(createSQL); err != nil {
		return err
	}

	idxSQL := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_ts ON %s (timestamp)",
		sanitizeIdentForIndexName(cfg.TargetTable), quoteIdent(cfg.TargetTable),
	)
	_, err := db.Exec(idxSQL)
	return err
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

// quoteIdent wraps a manifest-declared identifier in double quotes. Callers
// only ever pass names that originate from the manifest itself (never raw
// HTTP input), matching the whitelist-before-splice rule.
func quoteIdent(ident string) string {
	return `"` + ident + `"`
}

func sanitizeIdentForIndexName(ident string) string {
	return ident
}
