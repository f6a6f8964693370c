package ingest

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/apperr"
)

// flushBuffers writes every buffered DataPoint to its target table inside a
// single transaction, using INSERT OR IGNORE so a previously-ingested row
// (same content hash) is silently skipped rather than erroring — this is
// what makes re-ingesting the same export file idempotent. Each buffer is
// truncated in place as soon as its rows have been added to the
// transaction, before the commit.
func flushBuffers(db *sqlx.DB, tableBuffers map[string][]DataPoint) error {
	tx, err := db.Beginx()
	if err != nil {
		return apperr.Wrap(apperr.KindDB, "begin ingest transaction", err)
	}

	for tableName, records := range tableBuffers {
		for _, record := range records {
			colNames := make([]string, 0, len(record.Columns))
			placeholders := make([]string, 0, len(record.Columns))
			values := make([]interface{}, 0, len(record.Columns))
			for col, val := range record.Columns {
				colNames = append(colNames, col)
				placeholders = append(placeholders, "?")
				values = append(values, val)
			}

			query := fmt.Sprintf(
				"INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
				tableName, strings.Join(colNames, ", "), strings.Join(placeholders, ", "),
			)

			if _, err := tx.Exec(query, values...); err != nil {
				tx.Rollback()
				return apperr.Wrap(apperr.KindDB, fmt.Sprintf("insert into %s", tableName), err)
			}
		}
		tableBuffers[tableName] = records[:0]
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindDB, "commit ingest transaction", err)
	}
	return nil
}
