// Package db mirrors the current dataset into DuckDB for ad-hoc analytical
// queries.
package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-geoviz/internal/state"
)

// PointsTable holds the mirrored dataset.
const PointsTable = "points"

// Config holds database configuration.
type Config struct {
	// DataDir is where the database file lives. Empty opens an in-memory
	// database.
	DataDir string
	DBName  string
	// Extensions are installed and loaded on open. Failures are logged and
	// ignored.
	Extensions []string
	Logger     *slog.Logger
}

// Open opens the DuckDB database described by cfg.
func Open(cfg Config) (*sql.DB, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	dsn := ""
	if cfg.DataDir != "" {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "geoviz"
		}
		dsn = filepath.Join(duckdbDir, name+".duckdb")
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	for _, ext := range cfg.Extensions {
		if _, err := db.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			log.Warn("duckdb extension unavailable", "extension", ext, "err", err)
		}
	}
	return db, nil
}

const createPoints = `CREATE OR REPLACE TABLE ` + PointsTable + ` (
	id INTEGER,
	lng DOUBLE,
	lat DOUBLE,
	category VARCHAR,
	metro VARCHAR,
	recycling_volume INTEGER
)`

// ReplacePoints recreates the points table with pts in one transaction, so
// readers see either the old rows or the new ones. Concurrent calls conflict;
// Mirror serializes its own.
func ReplacePoints(ctx context.Context, db *sql.DB, pts []state.LocationPoint) (err error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN TRANSACTION"); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		}
	}()

	if _, err := conn.ExecContext(ctx, createPoints); err != nil {
		return fmt.Errorf("create %s: %w", PointsTable, err)
	}
	if err := conn.Raw(func(dc any) error { return appendPoints(dc.(driver.Conn), pts) }); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func appendPoints(dc driver.Conn, pts []state.LocationPoint) error {
	app, err := duckdb.NewAppenderFromConn(dc, "", PointsTable)
	if err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	for _, p := range pts {
		if err := app.AppendRow(int32(p.ID), p.Lng, p.Lat, p.Category, p.Metro, int32(p.RecyclingVolume)); err != nil {
			app.Close()
			return fmt.Errorf("append point %d: %w", p.ID, err)
		}
	}
	if err := app.Close(); err != nil {
		return fmt.Errorf("flush appender: %w", err)
	}
	return nil
}

// Mirror keeps the points table in step with the store's dataset.
type Mirror struct {
	mu  sync.Mutex
	db  *sql.DB
	log *slog.Logger
}

// NewMirror creates a mirror writing to db.
func NewMirror(db *sql.DB, log *slog.Logger) *Mirror {
	if log == nil {
		log = slog.Default()
	}
	return &Mirror{db: db, log: log}
}

// Attach copies the current dataset and then every replacement of it. The
// returned func detaches.
func (m *Mirror) Attach(ctx context.Context, store *state.Store) func() {
	m.sync(ctx, store.Points())
	return store.Subscribe(state.PathRawData, func(c state.Change) {
		pts, _ := c.Value.([]state.LocationPoint)
		m.sync(ctx, pts)
	})
}

func (m *Mirror) sync(ctx context.Context, pts []state.LocationPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ReplacePoints(ctx, m.db, pts); err != nil {
		m.log.Warn("duckdb mirror failed", "err", err)
		return
	}
	m.log.Debug("duckdb mirror updated", "rows", len(pts))
}
