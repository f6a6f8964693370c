// Package ingest implements the streaming XML ingester (spec section 4.2):
// a one-pass event-driven parse of a health export document that dispatches
// Records, ActivitySummaries, and Workouts into per-table batches, flushed
// via transactions.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/importly/health-dashboard-backend/internal/cclog"
)

// DataPoint is a staged, in-memory row prior to insertion: a target table
// plus a mapping of column name to stringified value. Everything is kept as
// a string so the batch insert can bind uniformly; SQLite coerces at
// insert time.
type DataPoint struct {
	TableName string
	Columns   map[string]string
}

// ContentHash computes the SHA-256 content-addressed primary key used for
// raw biometric records: sha256(table || column || start || end || value).
// Identical inputs always produce the identical hash, across runs and
// platforms, which is what makes INSERT OR IGNORE re-ingestion idempotent.
func ContentHash(table, column, start, end, value string) string {
	h := sha256.New()
	h.Write([]byte(table))
	h.Write([]byte(column))
	h.Write([]byte(start))
	h.Write([]byte(end))
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeDate converts "YYYY-MM-DD HH:MM:SS ±ZZZZ" input (the health
// export's native timestamp format) to RFC3339 UTC. Anything that does not
// match that layout is passed through unchanged, which in practice means
// values already in RFC3339 survive untouched.
func NormalizeDate(input string) string {
	const sourceLayout = "2006-01-02 15:04:05 -0700"
	t, err := time.Parse(sourceLayout, input)
	if err != nil {
		return input
	}
	return t.UTC().Format(time.RFC3339)
}

func logSkippedRecord(hkType string) {
	cclog.Debugf("record type %q not mapped in manifest, skipping", hkType)
}
