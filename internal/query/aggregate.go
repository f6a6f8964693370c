package query

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/apperr"
	"github.com/importly/health-dashboard-backend/internal/manifest"
)

var bucketFormats = map[string]string{
	"hour":  "%Y-%m-%dT%H:00:00Z",
	"day":   "%Y-%m-%d",
	"month": "%Y-%m",
}

// AggregateTable time-buckets table by bucket ("hour"|"day"|"month"),
// applying each manifest column's configured aggregate function
// (avg/sum/min/max/count); columns with aggregate "raw" are omitted from
// the aggregation, matching the manifest's aggregate semantics.
func AggregateTable(db *sqlx.DB, m *manifest.Manifest, table, bucket, start, end string) ([]map[string]interface{}, error) {
	timeFmt, ok := bucketFormats[bucket]
	if !ok {
		return nil, apperr.New(apperr.KindInvalidArgument, "invalid bucket, use 'hour', 'day', or 'month'")
	}

	tableConfig, ok := m.Table(table)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidArgument, fmt.Sprintf("table %q not found in manifest", table))
	}

	builder := sq.Select(fmt.Sprintf("strftime('%s', start_date) as time_bucket", timeFmt)).From(quoteIdent(table))

	for _, col := range tableConfig.Columns {
		switch col.EffectiveAggregate() {
		case manifest.AggregateAvg:
			builder = builder.Column(fmt.Sprintf("AVG(%s) as %s", quoteIdent(col.FieldName), quoteIdent(col.FieldName)))
		case manifest.AggregateSum:
			builder = builder.Column(fmt.Sprintf("SUM(%s) as %s", quoteIdent(col.FieldName), quoteIdent(col.FieldName)))
		case manifest.AggregateMin:
			builder = builder.Column(fmt.Sprintf("MIN(%s) as %s", quoteIdent(col.FieldName), quoteIdent(col.FieldName)))
		case manifest.AggregateMax:
			builder = builder.Column(fmt.Sprintf("MAX(%s) as %s", quoteIdent(col.FieldName), quoteIdent(col.FieldName)))
		case manifest.AggregateCnt:
			builder = builder.Column(fmt.Sprintf("COUNT(%s) as %s", quoteIdent(col.FieldName), quoteIdent(col.FieldName)))
		}
	}

	if start != "" {
		builder = builder.Where(sq.GtOrEq{"start_date": start})
	}
	if end != "" {
		builder = builder.Where(sq.LtOrEq{"start_date": end})
	}
	builder = builder.GroupBy("time_bucket").OrderBy("time_bucket DESC")

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, "build aggregate query", err)
	}

	rows, err := db.Queryx(sqlStr, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDB, fmt.Sprintf("aggregate table %q", table), err)
	}
	return rowsToMaps(rows)
}
