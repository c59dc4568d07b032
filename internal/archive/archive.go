// Package archive persists finished runs to sqlite. The live run's files are
// truncated on every start; the archive is where superseded runs go so the
// history survives restarts and new runs.
package archive

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/mun0404/IRIS/internal/runstore"
	"github.com/mun0404/IRIS/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ArchivedRun is one finished run as stored in the archive.
type ArchivedRun struct {
	RunID        string `json:"run_id"`
	StartTimeUTC string `json:"start_time_utc"`
	RunState     string `json:"run_state"`
	RobotState   string `json:"robot_state"`
	Total        int    `json:"total"`
	Passed       int    `json:"passed"`
	Failed       int    `json:"failed"`
	Pending      int    `json:"pending"`
	Status       string `json:"status"`
	ArchivedUTC  string `json:"archived_utc"`
}

// Archive is a sqlite-backed store of superseded runs.
type Archive struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (or creates) the archive database at path and applies pending
// migrations.
func Open(path string, clock timeutil.Clock) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	a := &Archive{db: db, clock: clock}
	if err := a.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// migrateUp runs all pending migrations from the embedded filesystem.
func (a *Archive) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(a.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger interface
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// SaveRun upserts the run's final state. Saving the same run twice keeps the
// newest summary, so a run superseded after a crash-restart does not
// duplicate.
func (a *Archive) SaveRun(run runstore.RunRecord) error {
	_, err := a.db.Exec(
		`INSERT INTO runs (
			run_id, start_time_utc, run_state, robot_state,
			total, passed, failed, pending, status, archived_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			run_state = excluded.run_state,
			robot_state = excluded.robot_state,
			total = excluded.total,
			passed = excluded.passed,
			failed = excluded.failed,
			pending = excluded.pending,
			status = excluded.status,
			archived_utc = excluded.archived_utc`,
		run.RunID, run.StartTimeUTC, run.RunState, run.RobotState,
		run.Summary.Total, run.Summary.Passed, run.Summary.Failed,
		run.Summary.Pending, run.Summary.Status, timeutil.UTCNow(a.clock),
	)
	if err != nil {
		return fmt.Errorf("failed to archive run %s: %w", run.RunID, err)
	}
	return nil
}

// ListRuns returns archived runs, newest first, at most limit rows.
func (a *Archive) ListRuns(limit int) ([]ArchivedRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.Query(
		`SELECT run_id, start_time_utc, run_state, robot_state,
			total, passed, failed, pending, status, archived_utc
		FROM runs
		ORDER BY start_time_utc DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived runs: %w", err)
	}
	defer rows.Close()

	var runs []ArchivedRun
	for rows.Next() {
		var r ArchivedRun
		if err := rows.Scan(
			&r.RunID, &r.StartTimeUTC, &r.RunState, &r.RobotState,
			&r.Total, &r.Passed, &r.Failed, &r.Pending, &r.Status, &r.ArchivedUTC,
		); err != nil {
			return nil, fmt.Errorf("failed to scan archived run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
