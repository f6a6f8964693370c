// Package scheduler runs the periodic external-source scan independent of
// any HTTP request, using go-co-op/gocron/v2 the way a background
// maintenance task would be wired into the teacher's process.
package scheduler

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jmoiron/sqlx"

	"github.com/importly/health-dashboard-backend/internal/cclog"
	"github.com/importly/health-dashboard-backend/internal/external"
	"github.com/importly/health-dashboard-backend/internal/manifest"
)

// Scheduler wraps a gocron scheduler running exactly one recurring job:
// the external-source import scan.
type Scheduler struct {
	inner gocron.Scheduler
}

// New creates and starts a scheduler that runs RunExternalImport every
// interval, logging (not failing the process on) any error from a run.
func New(db *sqlx.DB, baseDir string, m *manifest.Manifest, interval time.Duration) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			cclog.Printf("scheduled external import scan starting")
			if err := external.RunExternalImport(db, baseDir, m); err != nil {
				cclog.Errorf("scheduled external import scan failed: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	s.Start()
	return &Scheduler{inner: s}, nil
}

// Stop shuts the scheduler down, waiting for any in-flight run to finish.
func (s *Scheduler) Stop() error {
	return s.inner.Shutdown()
}
