package query

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/apperr"
	"github.com/importly/health-dashboard-backend/internal/manifest"
)

// QueryTable returns up to limit rows from table, most recent first by
// sortCol (defaulting to start_date), optionally windowed to [start, end].
// table and sortCol are both checked against the manifest here before they
// are spliced into SQL (whitelist-before-splice), since squirrel has no
// notion of identifier binding — only values bind.
func QueryTable(db *sqlx.DB, m *manifest.Manifest, table string, limit int, sortCol, start, end string) ([]map[string]interface{}, error) {
	if !m.HasTable(table) {
		return nil, apperr.New(apperr.KindInvalidArgument, fmt.Sprintf("table %q not defined in manifest", table))
	}

	sortBy := "start_date"
	if sortCol != "" {
		if !columnKnown(m, table, sortCol) {
			return nil, apperr.New(apperr.KindInvalidArgument, fmt.Sprintf("unknown sort column %q", sortCol))
		}
		sortBy = sortCol
	}

	builder := sq.Select("*").From(quoteIdent(table))
	if start != "" {
		builder = builder.Where(sq.GtOrEq{quoteIdent(sortBy): start})
	}
	if end != "" {
		builder = builder.Where(sq.LtOrEq{quoteIdent(sortBy): end})
	}
	builder = builder.OrderBy(fmt.Sprintf("%s DESC", quoteIdent(sortBy))).Limit(uint64(limit))

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, "build query", err)
	}

	rows, err := db.Queryx(sqlStr, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDB, fmt.Sprintf("query table %q", table), err)
	}
	return rowsToMaps(rows)
}

// columnKnown reports whether col is a declared column of table in the
// manifest (base columns uuid/creation_date/start_date/end_date always
// count as known).
func columnKnown(m *manifest.Manifest, table, col string) bool {
	switch col {
	case "uuid", "creation_date", "start_date", "end_date":
		return true
	}
	def, ok := m.Table(table)
	if !ok {
		return false
	}
	for _, c := range def.Columns {
		if c.FieldName == col {
			return true
		}
	}
	return false
}

func quoteIdent(ident string) string {
	return `"` + ident + `"`
}
