// Package store opens the single SQLite connection pool shared by the
// reconciler, ingester, importers, and query layer. Every statement passes
// through a sqlhooks-wrapped driver so execution is logged with timing,
// the way the teacher logs long-running repository operations.
package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	sqlhooks "github.com/qustavo/sqlhooks/v2"

	"github.com/importly/health-dashboard-backend/internal/apperr"
	"github.com/importly/health-dashboard-backend/internal/cclog"
)

const maxOpenConnections = 5

var registerOnce sync.Once

type queryTimingKey struct{}

type hooks struct{}

func (hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	return context.WithValue(ctx, queryTimingKey{}, time.Now()), nil
}

func (hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if start, ok := ctx.Value(queryTimingKey{}).(time.Time); ok {
		cclog.Debugf("sql %q took %s", query, time.Since(start))
	}
	return ctx, nil
}

func (hooks) OnError(ctx context.Context, err error, query string, args ...interface{}) error {
	cclog.Debugf("sql %q failed: %v", query, err)
	return err
}

// registerDriver wraps mattn/go-sqlite3 with the logging hooks exactly once
// per process, under the name "sqlite3-hooked".
func registerDriver() {
	registerOnce.Do(func() {
		sql.Register("sqlite3-hooked", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, hooks{}))
	})
}

// Open connects to the SQLite database at dbURL (a "sqlite:<path>?mode=rwc"
// style URL, or a bare path), capping the pool at 5 connections per the
// concurrency model: multiple concurrent ingestions share one pool and
// serialize on writes.
func Open(dbURL string) (*sqlx.DB, error) {
	registerDriver()

	dsn := toSqliteDSN(dbURL)
	db, err := sqlx.Open("sqlite3-hooked", dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDB, "failed to open sqlite pool", err)
	}

	db.SetMaxOpenConns(maxOpenConnections)

	if err := db.Ping(); err != nil {
		return nil, apperr.Wrap(apperr.KindDB, "failed to reach sqlite database", err)
	}

	return db, nil
}

// toSqliteDSN strips a "sqlite:" scheme prefix if present, since the
// underlying mattn/go-sqlite3 driver takes a bare filename/DSN.
func toSqliteDSN(dbURL string) string {
	const prefix = "sqlite:"
	if len(dbURL) > len(prefix) && dbURL[:len(prefix)] == prefix {
		return dbURL[len(prefix):]
	}
	return dbURL
}
