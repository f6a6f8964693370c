// Command server runs the digital physiologist backend: it reconciles the
// manifest-declared schema against the configured database, starts the
// background external-source scheduler, and serves the HTTP API.
package main

import (
	"net/http"
	"strings"

	"github.com/importly/health-dashboard-backend/internal/api"
	"github.com/importly/health-dashboard-backend/internal/cclog"
	"github.com/importly/health-dashboard-backend/internal/config"
	"github.com/importly/health-dashboard-backend/internal/jobs"
	"github.com/importly/health-dashboard-backend/internal/reconcile"
	"github.com/importly/health-dashboard-backend/internal/scheduler"
)

func main() {
	cfg := config.Load()

	db, m, err := reconcile.Init(cfg.DatabaseURL, cfg.ManifestPath)
	if err != nil {
		cclog.Fatalf("startup: %v", err)
	}
	defer db.Close()

	registry := jobs.NewRegistry()

	sched, err := scheduler.New(db, cfg.ExternalImportDir, m, cfg.ExternalScanInterval)
	if err != nil {
		cclog.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	server := api.NewServer(db, m, registry, cfg.ExternalImportDir, dbFilePath(cfg.DatabaseURL), cfg.IngestRatePerSecond)

	cclog.Printf("listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, server.Router()); err != nil {
		cclog.Fatalf("server exited: %v", err)
	}
}

// dbFilePath strips a sqlite: prefix and query parameters so summary
// reporting can os.Stat the actual file on disk.
func dbFilePath(dbURL string) string {
	path := strings.TrimPrefix(dbURL, "sqlite:")
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	return path
}
