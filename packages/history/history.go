// Package history stores finished load runs in a SQLite database so runs
// against the same mirror node can be compared over time.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/stress"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	recorded_at INTEGER NOT NULL,
	scenarios   TEXT NOT NULL,
	mode        TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	requests    INTEGER NOT NULL,
	errors      INTEGER NOT NULL,
	rps         REAL NOT NULL,
	p50_ms      REAL NOT NULL,
	p95_ms      REAL NOT NULL,
	p99_ms      REAL NOT NULL,
	check_rate  REAL NOT NULL,
	passed      INTEGER NOT NULL,
	thresholds  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_recorded_at ON runs (recorded_at);
`

// Run is one stored load run
type Run struct {
	ID         string        `json:"id"`
	RecordedAt time.Time     `json:"recordedAt"`
	Scenarios  []string      `json:"scenarios"`
	Mode       string        `json:"mode"`
	Duration   time.Duration `json:"duration"`
	Requests   int64         `json:"iterations"`
	Errors     int64         `json:"errors"`
	RPS        float64       `json:"rps"`
	P50        time.Duration `json:"p50"`
	P95        time.Duration `json:"p95"`
	P99        time.Duration `json:"p99"`
	CheckRate  float64       `json:"checkRate"`
	Passed     bool          `json:"passed"`
	Thresholds []Threshold   `json:"thresholds"`
}

// Threshold is a stored threshold outcome
type Threshold struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Store is a SQLite-backed run history
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
	now          func() time.Time
}

// Open opens or creates the history database. path may carry a sqlite://
// or sqlite: prefix.
func Open(path string) (*Store, error) {
	dsn := parseConnectionString(path)
	if dsn == "" {
		return nil, fmt.Errorf("history database path is empty")
	}

	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create history directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// one connection keeps :memory: databases shared across queries
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{
		db:           db,
		queryTimeout: 30 * time.Second,
		now:          time.Now,
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save records a finished run and returns what was stored
func (s *Store) Save(result *stress.Result) (*Run, error) {
	if result == nil || result.Summary == nil {
		return nil, fmt.Errorf("cannot save a run without a summary")
	}

	run := fromResult(result, s.now())

	thresholds, err := json.Marshal(run.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thresholds: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, recorded_at, scenarios, mode, duration_ms, requests, errors,
			rps, p50_ms, p95_ms, p99_ms, check_rate, passed, thresholds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.RecordedAt.UnixNano(),
		strings.Join(run.Scenarios, ","),
		run.Mode,
		run.Duration.Milliseconds(),
		run.Requests,
		run.Errors,
		run.RPS,
		toMs(run.P50),
		toMs(run.P95),
		toMs(run.P99),
		run.CheckRate,
		run.Passed,
		string(thresholds),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	return run, nil
}

// Recent returns up to limit runs, newest first
func (s *Store) Recent(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.query(`SELECT `+columns+` FROM runs ORDER BY recorded_at DESC, rowid DESC LIMIT ?`, limit)
}

// Get returns the run with the given id, or nil if there is none
func (s *Store) Get(id string) (*Run, error) {
	runs, err := s.query(`SELECT `+columns+` FROM runs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

const columns = `id, recorded_at, scenarios, mode, duration_ms, requests, errors,
	rps, p50_ms, p95_ms, p99_ms, check_rate, passed, thresholds`

func (s *Store) query(query string, args ...any) ([]*Run, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			run                    Run
			recordedAt, durationMs int64
			scenarios, thresholds  string
			p50, p95, p99          float64
		)
		err := rows.Scan(&run.ID, &recordedAt, &scenarios, &run.Mode, &durationMs,
			&run.Requests, &run.Errors, &run.RPS, &p50, &p95, &p99,
			&run.CheckRate, &run.Passed, &thresholds)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		run.RecordedAt = time.Unix(0, recordedAt)
		if scenarios != "" {
			run.Scenarios = strings.Split(scenarios, ",")
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		run.P50 = fromMs(p50)
		run.P95 = fromMs(p95)
		run.P99 = fromMs(p99)
		if err := json.Unmarshal([]byte(thresholds), &run.Thresholds); err != nil {
			return nil, fmt.Errorf("failed to decode thresholds of run %s: %w", run.ID, err)
		}

		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

func fromResult(result *stress.Result, now time.Time) *Run {
	s := result.Summary
	run := &Run{
		ID:         result.RunID,
		RecordedAt: now,
		Scenarios:  result.Scenarios,
		Mode:       result.Config.Mode.String(),
		Duration:   s.Duration,
		Requests:   s.TotalRequests,
		Errors:     s.ErrorCount,
		RPS:        s.RPS,
		P50:        s.P50,
		P95:        s.P95,
		P99:        s.P99,
		CheckRate:  s.CheckRate,
		Passed:     result.Passed,
		Thresholds: make([]Threshold, 0, len(result.Thresholds)),
	}
	for _, tr := range result.Thresholds {
		run.Thresholds = append(run.Thresholds, Threshold(tr))
	}
	return run
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func fromMs(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// parseConnectionString strips the optional sqlite scheme
// Supported formats:
// - sqlite://path/to/history.db
// - sqlite:./history.db
// - path/to/history.db
func parseConnectionString(connStr string) string {
	connStr = strings.TrimSpace(connStr)

	if strings.HasPrefix(connStr, "sqlite://") {
		return strings.TrimPrefix(connStr, "sqlite://")
	}
	if strings.HasPrefix(connStr, "sqlite:") {
		return strings.TrimPrefix(connStr, "sqlite:")
	}
	return connStr
}
