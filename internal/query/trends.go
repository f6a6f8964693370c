package query

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/apperr"
	"github.com/importly/health-dashboard-backend/internal/manifest"
)

// GetBiometricTrends returns avg/min/max for every numeric vitals column
// over [start, end], one row flattened into a single object (e.g.
// "heart_rate_avg", "heart_rate_min", "heart_rate_max").
func GetBiometricTrends(db *sqlx.DB, m *manifest.Manifest, start, end string) (map[string]interface{}, error) {
	table, ok := m.Table("vitals")
	if !ok {
		return nil, apperr.New(apperr.KindInvalidArgument, "vitals table not found in manifest")
	}

	var selectParts []string
	for _, col := range table.Columns {
		if col.DataType != "REAL" && col.DataType != "INTEGER" {
			continue
		}
		selectParts = append(selectParts,
			fmt.Sprintf("AVG(%s) as %s_avg", quoteIdent(col.FieldName), col.FieldName),
			fmt.Sprintf("MIN(%s) as %s_min", quoteIdent(col.FieldName), col.FieldName),
			fmt.Sprintf("MAX(%s) as %s_max", quoteIdent(col.FieldName), col.FieldName),
		)
	}

	if len(selectParts) == 0 {
		return map[string]interface{}{}, nil
	}

	sqlStr := fmt.Sprintf("SELECT %s FROM vitals WHERE start_date >= ? AND start_date <= ?", strings.Join(selectParts, ", "))

	rows, err := db.Queryx(sqlStr, start, end)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDB, "query biometric trends", err)
	}
	results, err := rowsToMaps(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return map[string]interface{}{}, nil
	}
	return results[0], nil
}
