package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"IndexTracker/internal/model"
	"IndexTracker/internal/tracker"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists batch history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS batch_runs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at    INTEGER NOT NULL,
			finished_at   INTEGER NOT NULL,
			window_months INTEGER,
			pairs         INTEGER,
			charts        INTEGER,
			skipped       INTEGER,
			failed        INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON batch_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS pair_results (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        INTEGER NOT NULL REFERENCES batch_runs(id),
			title         TEXT NOT NULL,
			status        TEXT NOT NULL,
			fetch_error   TEXT,
			error         TEXT,
			chart_path    TEXT,
			rows          INTEGER,
			from_date     TEXT,
			to_date       TEXT,
			last_index    REAL,
			last_etf      REAL,
			index_return  REAL,
			etf_return    REAL,
			tracking_diff REAL,
			correlation   REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_run ON pair_results(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_title ON pair_results(title)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordBatch stores a summary and its pair results in one transaction.
func (r *SQLiteRecorder) RecordBatch(sum *tracker.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ok, skipped, failed := sum.Counts()
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO batch_runs
		(started_at, finished_at, window_months, pairs, charts, skipped, failed)
		VALUES (?,?,?,?,?,?,?)`,
		sum.StartedAt.Unix(), sum.FinishedAt.Unix(), sum.WindowMonths,
		len(sum.Results), ok, skipped, failed,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	for _, pr := range sum.Results {
		st := pr.Stats
		var from, to string
		if st.Rows > 0 {
			from, to = st.From.Format(model.DateLayout), st.To.Format(model.DateLayout)
		}
		if _, err := tx.Exec(`INSERT INTO pair_results
			(run_id, title, status, fetch_error, error, chart_path, rows, from_date, to_date,
			 last_index, last_etf, index_return, etf_return, tracking_diff, correlation)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			runID, pr.Title, Status(pr), errText(pr.FetchErr), errText(pr.Err), pr.ChartPath,
			st.Rows, from, to, st.LastIndex, st.LastETF,
			st.IndexReturn, st.ETFReturn, st.TrackingDiff, st.Correlation,
		); err != nil {
			return fmt.Errorf("insert result %q: %w", pr.Title, err)
		}
	}
	return tx.Commit()
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
