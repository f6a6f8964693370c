package ingest

import (
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/apperr"
	"github.com/importly/health-dashboard-backend/internal/cclog"
	"github.com/importly/health-dashboard-backend/internal/manifest"
)

// recordMapping resolves a health-record "type" attribute to the table and
// column it feeds, for the common case of extraction_source "value".
type recordMapping struct {
	table  string
	column string
}

// ProgressFunc is called with a coalesced running row count as the parse
// progresses. It runs on a separate goroutine fed by a non-blocking,
// coalescing publish from the parse loop, so a slow or blocked subscriber
// never stalls ingestion.
type ProgressFunc func(count int)

// ParseAndIngest streams the XML export read from r, dispatching Record,
// ActivitySummary, and Workout elements into per-table batches that are
// flushed to db in a single transaction once any table's batch reaches the
// manifest's batch_size. It returns the total number of rows staged for
// insertion (including rows an INSERT OR IGNORE later discards as
// duplicates).
func ParseAndIngest(r io.Reader, db *sqlx.DB, m *manifest.Manifest, onProgress ProgressFunc) (int, error) {
	batchSize := m.Settings.EffectiveBatchSize()

	recordMap := make(map[string]recordMapping)
	tableBuffers := make(map[string][]DataPoint)
	for tableName, table := range m.Tables {
		tableBuffers[tableName] = make([]DataPoint, 0, batchSize)
		for _, col := range table.Columns {
			if col.HKIdentifier == "" {
				continue
			}
			if col.EffectiveExtractionSource() == manifest.SourceValue {
				recordMap[col.HKIdentifier] = recordMapping{table: tableName, column: col.FieldName}
			}
		}
	}

	var progressCounter atomic.Int64
	var progressCh chan int
	if onProgress != nil {
		progressCh = make(chan int, 1)
		go func() {
			for count := range progressCh {
				onProgress(count)
			}
		}()
		defer close(progressCh)
	}
	publishProgress := func(total int) {
		progressCounter.Store(int64(total))
		if progressCh == nil {
			return
		}
		select {
		case progressCh <- total:
		default:
			select {
			case <-progressCh:
			default:
			}
			select {
			case progressCh <- total:
			default:
			}
		}
	}

	decoder := xml.NewDecoder(r)
	totalCount := 0

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return totalCount, apperr.Wrap(apperr.KindParse, "xml token error", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "Record":
				if dp, ok := extractRecordData(el, recordMap); ok {
					tableBuffers[dp.TableName] = append(tableBuffers[dp.TableName], dp)
				}
				if err := skipElement(decoder, "Record"); err != nil {
					return totalCount, apperr.Wrap(apperr.KindParse, "unexpected eof inside Record", err)
				}
			case "ActivitySummary":
				dp := extractActivitySummary(el, m)
				tableBuffers["activity_summaries"] = append(tableBuffers["activity_summaries"], dp)
			case "Workout":
				dp, err := extractWorkout(decoder, el, m)
				if err != nil {
					return totalCount, err
				}
				tableBuffers["workouts"] = append(tableBuffers["workouts"], dp)
			}
		}

		needsFlush := false
		for _, buf := range tableBuffers {
			if len(buf) >= batchSize {
				needsFlush = true
				break
			}
		}
		if needsFlush {
			batchCount := 0
			for _, buf := range tableBuffers {
				batchCount += len(buf)
			}
			totalCount += batchCount
			if err := flushBuffers(db, tableBuffers); err != nil {
				return totalCount, err
			}
			cclog.Printf("processed %d records...", totalCount)
			publishProgress(totalCount)
		}
	}

	finalCount := 0
	for _, buf := range tableBuffers {
		finalCount += len(buf)
	}
	if finalCount > 0 {
		totalCount += finalCount
		if err := flushBuffers(db, tableBuffers); err != nil {
			return totalCount, err
		}
	}

	cclog.Printf("finished processing, total records: %d", totalCount)
	return totalCount, nil
}

// skipElement consumes tokens up to and including the matching end element
// of an element whose children are not otherwise read, such as a Record
// (empty or with nested MetadataEntry children). An EOF before the matching end tag is
// reported as a parse error rather than silently truncating ingestion.
func skipElement(decoder *xml.Decoder, name string) error {
	depth := 1
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return fmt.Errorf("eof before closing </%s>", name)
		}
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == name {
				depth++
			}
		case xml.EndElement:
			if el.Name.Local == name {
				depth--
				if depth == 0 {
					return nil
				}
			}
		}
	}
}

func attrValue(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func extractRecordData(el xml.StartElement, recordMap map[string]recordMapping) (DataPoint, bool) {
	hkType := attrValue(el, "type")
	value := attrValue(el, "value")
	creationDate := NormalizeDate(attrValue(el, "creationDate"))
	startDate := NormalizeDate(attrValue(el, "startDate"))
	endDate := NormalizeDate(attrValue(el, "endDate"))

	mapping, ok := recordMap[hkType]
	if !ok {
		return DataPoint{}, false
	}

	return DataPoint{
		TableName: mapping.table,
		Columns: map[string]string{
			"uuid":          ContentHash(mapping.table, mapping.column, startDate, endDate, value),
			"creation_date": creationDate,
			"start_date":    startDate,
			"end_date":      endDate,
			mapping.column:  value,
		},
	}, true
}

func extractActivitySummary(el xml.StartElement, m *manifest.Manifest) DataPoint {
	summary := make(map[string]string)
	table, ok := m.Table("activity_summaries")
	if ok {
		for _, attr := range el.Attr {
			key := attr.Name.Local
			for _, col := range table.Columns {
				if col.HKAttribute == key {
					summary[col.FieldName] = attr.Value
				}
			}
		}
	}
	return DataPoint{TableName: "activity_summaries", Columns: summary}
}

// extractWorkout consumes a Workout element and its children
// (WorkoutStatistics, MetadataEntry, FileReference), returning the
// assembled row. Per the ingester's EOF-is-an-error rule, reaching end of
// input before the closing </Workout> is a ParseError, not a partial row.
func extractWorkout(decoder *xml.Decoder, start xml.StartElement, m *manifest.Manifest) (DataPoint, error) {
	workoutData := make(map[string]string)

	startDateRaw := attrValue(start, "startDate")
	endDateRaw := attrValue(start, "endDate")
	creationDateRaw := attrValue(start, "creationDate")

	table, hasTable := m.Table("workouts")
	if hasTable {
		for _, attr := range start.Attr {
			for _, col := range table.Columns {
				if col.EffectiveExtractionSource() == manifest.SourceAttribute && col.HKAttribute == attr.Name.Local {
					workoutData[col.FieldName] = attr.Value
				}
			}
		}
	}

	workoutData["start_date"] = NormalizeDate(startDateRaw)
	workoutData["end_date"] = NormalizeDate(endDateRaw)
	workoutData["creation_date"] = NormalizeDate(creationDateRaw)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return DataPoint{}, apperr.New(apperr.KindParse, "eof before closing </Workout>")
		}
		if err != nil {
			return DataPoint{}, apperr.Wrap(apperr.KindParse, "xml token error inside workout", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "WorkoutStatistics":
				statType := attrValue(el, "type")
				statSum := attrValue(el, "sum")
				if hasTable {
					for _, col := range table.Columns {
						if col.EffectiveExtractionSource() == manifest.SourceStatisticsSum && col.HKIdentifier == statType {
							workoutData[col.FieldName] = statSum
						}
					}
				}
				_ = skipElement(decoder, "WorkoutStatistics")
			case "MetadataEntry":
				mkey := attrValue(el, "key")
				mval := attrValue(el, "value")
				if hasTable {
					for _, col := range table.Columns {
						if col.EffectiveExtractionSource() == manifest.SourceMetadataValue && col.HKIdentifier == mkey {
							workoutData[col.FieldName] = mval
						}
					}
				}
				_ = skipElement(decoder, "MetadataEntry")
			case "FileReference":
				pathVal := attrValue(el, "path")
				fileName := filepath.Base(pathVal)
				if hasTable {
					for _, col := range table.Columns {
						if col.EffectiveExtractionSource() == manifest.SourceRouteRef {
							workoutData[col.FieldName] = fileName
						}
					}
				}
				_ = skipElement(decoder, "FileReference")
			default:
				if err := skipElement(decoder, el.Name.Local); err != nil {
					return DataPoint{}, apperr.Wrap(apperr.KindParse, "eof before closing workout child element", err)
				}
			}
		case xml.EndElement:
			if el.Name.Local == "Workout" {
				return DataPoint{TableName: "workouts", Columns: workoutData}, nil
			}
		}
	}
}
