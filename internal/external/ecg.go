// Package external implements the two external-source importers (spec
// section 4.3): ECG CSV files and GPX route files, both scanned from a
// manifest-configured folder and inserted into their own target table.
package external

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/apperr"
	"github.com/importly/health-dashboard-backend/internal/cclog"
	"github.com/importly/health-dashboard-backend/internal/manifest"
)

const defaultECGSampleRateHz = 512.0

// ImportECGs scans folder for *.csv files not already present (by
// file_name) in cfg.TargetTable and imports each one.
func ImportECGs(db *sqlx.DB, folder string, cfg *manifest.EcgConfig) error {
	cclog.Printf("scanning for ECGs in %s", folder)
	entries, err := os.ReadDir(folder)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, fmt.Sprintf("read ecg folder %q", folder), err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.ToLower(filepath.Ext(entry.Name())) != ".csv" {
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

		if err := processSingleECG(db, path, fileName, cfg); err != nil {
			cclog.Errorf("failed to import ecg %s: %v", fileName, err)
			continue
		}
		cclog.Printf("successfully imported ecg: %s", fileName)
	}
	return nil
}

func fileAlreadyImported(db *sqlx.DB, table, fileName string) (bool, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE file_name = ?", quoteIdent(table))
	if err := db.QueryRowx(query, fileName).Scan(&count); err != nil {
		return false, apperr.Wrap(apperr.KindDB, fmt.Sprintf("check existing import in %q", table), err)
	}
	return count > 0, nil
}

// processSingleECG splits the CSV into a metadata header section and a
// trailing numeric sample section, derives sample_count/mean_voltage/
// calculated_hr, and inserts one row into cfg.TargetTable.
func processSingleECG(db *sqlx.DB, path, fileName string, cfg *manifest.EcgConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "open ecg file", err)
	}
	defer f.Close()

	metadata := make(map[string]string)
	var samples []string
	inSamples := false

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !inSamples {
			foundMeta := false
			for _, m := range cfg.MetadataMap {
				if strings.HasPrefix(line, m.CSVKey) {
					if _, val, ok := strings.Cut(line, ","); ok {
						metadata[m.CSVKey] = strings.Trim(strings.TrimSpace(val), `"`)
						foundMeta = true
						break
					}
				}
			}

			if strings.HasPrefix(line, "Lead,") || strings.HasPrefix(line, "Unit,") {
				continue
			}

			if !foundMeta && looksNumeric(line) {
				inSamples = true
				samples = append(samples, line)
			}
		} else {
			samples = append(samples, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return apperr.Wrap(apperr.KindParse, "scan ecg csv", err)
	}

	payload := strings.Join(samples, ",")

	numericSamples := make([]float64, 0, len(samples))
	for _, s := range samples {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			numericSamples = append(numericSamples, v)
		}
	}

	sampleCount := len(numericSamples)
	meanVoltage := 0.0
	if sampleCount > 0 {
		sum := 0.0
		for _, v := range numericSamples {
			sum += v
		}
		meanVoltage = sum / float64(sampleCount)
	}

	sampleRateHz := defaultECGSampleRateHz
	if raw, ok := metadata["Sample Rate"]; ok {
		fields := strings.Fields(raw)
		if len(fields) > 0 {
			if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
				sampleRateHz = v
			}
		}
	}

	calculatedHR := calculateECGHeartRate(numericSamples, sampleRateHz)

	colNames := []string{"file_name", "sample_count", "mean_voltage", "calculated_hr"}
	values := []interface{}{fileName, sampleCount, meanVoltage, calculatedHR}

	for _, m := range cfg.MetadataMap {
		colNames = append(colNames, m.DBColumn)
		values = append(values, metadata[m.CSVKey])
	}
	colNames = append(colNames, cfg.Payload.DBColumn)
	values = append(values, payload)

	placeholders := make([]string, len(colNames))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(cfg.TargetTable), strings.Join(colNames, ", "), strings.Join(placeholders, ", "),
	)
	if _, err := db.Exec(query, values...); err != nil {
		return apperr.Wrap(apperr.KindDB, fmt.Sprintf("insert ecg row into %q", cfg.TargetTable), err)
	}
	return nil
}

func looksNumeric(line string) bool {
	if line == "" {
		return false
	}
	r := rune(line[0])
	return unicode.IsDigit(r) || r == '-'
}

// calculateECGHeartRate performs a simple threshold-plus-refractory-period
// R-peak detector: peaks are samples above mean+0.6*(max-mean), more than
// int(0.2*sampleRate) samples apart, and heart rate is 60/mean(RR-interval).
func calculateECGHeartRate(samples []float64, sampleRate float64) float64 {
	if len(samples) == 0 || sampleRate <= 0 {
		return 0
	}

	max := math.Inf(-1)
	sum := 0.0
	for _, v := range samples {
		if v > max {
			max = v
		}
		sum += v
	}
	mean := sum / float64(len(samples))
	threshold := mean + (max-mean)*0.6

	refractorySamples := int(0.2 * sampleRate)
	var peakIndices []int
	lastPeak := -1

	for i, v := range samples {
		if v > threshold && (lastPeak < 0 || i-lastPeak > refractorySamples) {
			peakIndices = append(peakIndices, i)
			lastPeak = i
		}
	}

	if len(peakIndices) < 2 {
		return 0
	}

	rrSum := 0.0
	for i := 1; i < len(peakIndices); i++ {
		diffSamples := peakIndices[i] - peakIndices[i-1]
		rrSum += float64(diffSamples) / sampleRate
	}
	avgRR := rrSum / float64(len(peakIndices)-1)
	if avgRR <= 0 {
		return 0
	}
	return 60.0 / avgRR
}

func quoteIdent(ident string) string {
	return `"` + ident + `"`
}
