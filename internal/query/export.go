package query

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/apperr"
)

// ExportTableToCSV renders every row of table as CSV text, header row
// first. Column order follows whatever order the driver reports for
// "SELECT *", matching the original per-row reflection-free dump. Uses the
// standard library csv writer: no third-party CSV writer appears anywhere
// in the example pack's grounding material for this concern.
func ExportTableToCSV(db *sqlx.DB, table string) (string, error) {
	rows, err := db.Queryx(fmt.Sprintf("SELECT * FROM %s", quoteIdent(table)))
	if err != nil {
		return "", apperr.Wrap(apperr.KindDB, fmt.Sprintf("query table %q for export", table), err)
	}
	defer rows.Close()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	columns, err := rows.Columns()
	if err != nil {
		return "", err
	}

	if err := w.Write(columns); err != nil {
		return "", err
	}

	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return "", err
		}

		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = stringifyCell(row[col])
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func stringifyCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case float64:
		return fmt.Sprintf("%v", val)
	case int64:
		return fmt.Sprintf("%d", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
