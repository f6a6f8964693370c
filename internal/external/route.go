package external

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/apperr"
	"github.com/importly/health-dashboard-backend/internal/cclog"
	"github.com/importly/health-dashboard-backend/internal/manifest"
)

// ImportRoutes scans folder for *.gpx files not already present (by
// file_name) in cfg.TargetTable and imports each one.
func ImportRoutes(db *sqlx.DB, folder string, cfg *manifest.RouteConfig, m *manifest.Manifest) error {
	cclog.Printf("scanning for routes in %s", folder)
	entries, err := os.ReadDir(folder)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, fmt.Sprintf("read routes folder %q", folder), err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.ToLower(filepath.Ext(entry.Name())) != ".gpx" {
			continue
		}
		path := filepath.Join(folder, entry.Name())
		fileName := entry.Name()

		already, err := fileAlreadyImported(db, cfg.TargetTable, fileName)
		if err != nil {
			return err
		}
		if already {
			continue
		}

		if err := processSingleRoute(db, path, fileName, cfg, m); err != nil {
			cclog.Errorf("failed to import route %s: %v", fileName, err)
			continue
		}
		cclog.Printf("successfully imported route: %s", fileName)
	}
	return nil
}

// processSingleRoute streams trkpt elements, buffering each parsed point
// (including its lat/lon attributes and any child-element text matching a
// configured xml_tag) and flushing in transactions of manifest batch_size.
func processSingleRoute(db *sqlx.DB, path, fileName string, cfg *manifest.RouteConfig, m *manifest.Manifest) error {
	f, err := os.Open(path)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "open gpx file", err)
	}
	defer f.Close()

	batchSize := m.Settings.EffectiveBatchSize()
	decoder := xml.NewDecoder(f)

	pointBuffer := make([]map[string]string, 0, batchSize)
	var currentPoint map[string]string
	var currentTag string

	flush := func() error {
		if len(pointBuffer) == 0 {
			return nil
		}
		if err := flushRoutePoints(db, fileName, pointBuffer, cfg); err != nil {
			return err
		}
		pointBuffer = pointBuffer[:0]
		return nil
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return apperr.Wrap(apperr.KindParse, "gpx token error", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			currentTag = el.Name.Local
			if currentTag == "trkpt" {
				p := make(map[string]string)
				for _, attr := range el.Attr {
					if attr.Name.Local == "lat" || attr.Name.Local == "lon" {
						p[attr.Name.Local] = attr.Value
					}
				}
				currentPoint = p
			}
		case xml.CharData:
			if currentPoint != nil && currentTag != "" {
				text := strings.TrimSpace(string(el))
				if text != "" {
					currentPoint[currentTag] = text
				}
			}
		case xml.EndElement:
			if el.Name.Local == "trkpt" && currentPoint != nil {
				pointBuffer = append(pointBuffer, currentPoint)
				currentPoint = nil
			}
			currentTag = ""
		}

		if len(pointBuffer) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}

func flushRoutePoints(db *sqlx.DB, fileName string, points []map[string]string, cfg *manifest.RouteConfig) error {
	tx, err := db.Beginx()
	if err != nil {
		return apperr.Wrap(apperr.KindDB, "begin route transaction", err)
	}

	for _, p := range points {
		colNames := []string{"file_name"}
		values := []interface{}{fileName}

		for _, c := range cfg.Columns {
			colNames = append(colNames, c.DBColumn)
			values = append(values, p[c.XMLTag])
		}

		placeholders := make([]string, len(colNames))
		for i := range placeholders {
			placeholders[i] = "?"
		}

		query := fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(cfg.TargetTable), strings.Join(colNames, ", "), strings.Join(placeholders, ", "),
		)
		if _, err := tx.Exec(query, values...); err != nil {
			tx.Rollback()
			return apperr.Wrap(apperr.KindDB, fmt.Sprintf("insert route point into %q", cfg.TargetTable), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindDB, "commit route transaction", err)
	}
	return nil
}
