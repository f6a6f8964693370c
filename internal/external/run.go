package external

import (
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/manifest"
)

// RunExternalImport scans baseDir for configured ECG and route folders and
// imports any new files found. It is a no-op if the manifest declares no
// external_sources, and is safe to call repeatedly (the scheduler's
// periodic trigger and the manual /api/import/external endpoint both call
// this same function).
func RunExternalImport(db *sqlx.DB, baseDir string, m *manifest.Manifest) error {
	if m.ExternalSources == nil {
		return nil
	}

	if cfg := m.ExternalSources.Ecg; cfg != nil {
		folder := filepath.Join(baseDir, cfg.Folder)
		if dirExists(folder) {
			if err := ImportECGs(db, folder, cfg); err != nil {
				return err
			}
		}
	}

	if cfg := m.ExternalSources.Routes; cfg != nil {
		folder := filepath.Join(baseDir, cfg.Folder)
		if dirExists(folder) {
			if err := ImportRoutes(db, folder, cfg, m); err != nil {
				return err
			}
		}
	}

	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
