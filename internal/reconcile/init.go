package reconcile

import (
	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/manifest"
	"github.com/importly/health-dashboard-backend/internal/store"
)

// Init opens the database at dbURL (creating it if needed), loads and
// parses the manifest at manifestPath, and reconciles the schema. This is
// the top-level "init" operation from the manifest loader & schema
// reconciler component: a structured error is returned (never a partial
// pool) if the manifest cannot be parsed or the database is unreachable.
func Init(dbURL, manifestPath string) (*sqlx.DB, *manifest.Manifest, error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, nil, err
	}

	db, err := store.Open(dbURL)
	if err != nil {
		return nil, nil, err
	}

	if err := Run(db, m); err != nil {
		db.Close()
		return nil, nil, err
	}

	return db, m, nil
}
