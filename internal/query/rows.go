// Package query implements the analytics query layer (spec section 4.4):
// manifest-whitelisted reads, aggregation, trends, workout detail
// enrichment, intensity zoning, recovery scoring, sleep staging, CSV
// export, and the database summary.
package query

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// rowsToMaps materializes every row of rs into a JSON-friendly
// map[string]interface{}, using each column's native SQLite type
// (int64/float64/string) and nil for SQL NULL — mirroring the
// try_get::<f64>/<i64>/<String> cascade the original query layer used to
// build ad hoc JSON objects from untyped rows.
func rowsToMaps(rs *sqlx.Rows) ([]map[string]interface{}, error) {
	defer rs.Close()

	results := make([]map[string]interface{}, 0)
	for rs.Next() {
		row := make(map[string]interface{})
		if err := rs.MapScan(row); err != nil {
			return nil, err
		}
		normalizeRow(row)
		results = append(results, row)
	}
	return results, rs.Err()
}

// normalizeRow converts the driver's []byte representation of TEXT columns
// to plain strings, which MapScan otherwise leaves as raw bytes.
func normalizeRow(row map[string]interface{}) {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
}

func nullableString(s sql.NullString) interface{} {
	if !s.Valid {
		return nil
	}
	return s.String
}
