// Package history persists measurement reports to a local SQLite database so
// runs against the same target can be compared over time.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sshping/sshping/internal/probe"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	started_at     INTEGER NOT NULL,
	target         TEXT NOT NULL,
	connect_ns     INTEGER NOT NULL,
	echo_count     INTEGER,
	echo_mean_ns   INTEGER,
	echo_std_ns    INTEGER,
	echo_median_ns INTEGER,
	echo_timed_out INTEGER,
	upload_bytes   INTEGER,
	upload_ns      INTEGER,
	download_bytes INTEGER,
	download_ns    INTEGER
);
CREATE INDEX IF NOT EXISTS runs_target_time ON runs (target, started_at DESC);
`

// Store is an append-only run archive.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Insert archives one finished report.
func (s *Store) Insert(r *probe.Report) error {
	var (
		echoCount, echoMean, echoStd, echoMedian sql.NullInt64
		echoTimedOut                             sql.NullBool
		upBytes, upNs, downBytes, downNs         sql.NullInt64
	)
	if r.Echo != nil {
		echoTimedOut = sql.NullBool{Bool: r.Echo.TimedOut, Valid: true}
		if l := r.Echo.Latency; l != nil {
			echoCount = sql.NullInt64{Int64: int64(l.Count), Valid: true}
			echoMean = sql.NullInt64{Int64: l.Mean.Nanoseconds(), Valid: true}
			echoStd = sql.NullInt64{Int64: l.Std.Nanoseconds(), Valid: true}
			echoMedian = sql.NullInt64{Int64: l.Median.Nanoseconds(), Valid: true}
		}
	}
	if r.Speed != nil {
		upBytes = sql.NullInt64{Int64: r.Speed.Upload.Bytes, Valid: true}
		upNs = sql.NullInt64{Int64: r.Speed.Upload.Elapsed.Nanoseconds(), Valid: true}
		downBytes = sql.NullInt64{Int64: r.Speed.Download.Bytes, Valid: true}
		downNs = sql.NullInt64{Int64: r.Speed.Download.Elapsed.Nanoseconds(), Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at, target, connect_ns,
			echo_count, echo_mean_ns, echo_std_ns, echo_median_ns, echo_timed_out,
			upload_bytes, upload_ns, download_bytes, download_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.StartedAt.UnixNano(), r.Target, r.ConnectTime.Nanoseconds(),
		echoCount, echoMean, echoStd, echoMedian, echoTimedOut,
		upBytes, upNs, downBytes, downNs,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}
	return nil
}

// Entry is one archived run, with optional sections left nil when the run
// skipped them.
type Entry struct {
	RunID       string
	StartedAt   time.Time
	Target      string
	ConnectTime time.Duration
	Echo        *EchoEntry
	Upload      *TransferEntry
	Download    *TransferEntry
}

type EchoEntry struct {
	Count    int
	Mean     time.Duration
	Std      time.Duration
	Median   time.Duration
	TimedOut bool
}

type TransferEntry struct {
	Bytes   int64
	Elapsed time.Duration
}

// Recent returns the latest runs for a target, newest first. An empty target
// returns runs against any host.
func (s *Store) Recent(target string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT id, started_at, target, connect_ns,
		echo_count, echo_mean_ns, echo_std_ns, echo_median_ns, echo_timed_out,
		upload_bytes, upload_ns, download_bytes, download_ns
		FROM runs`
	args := []any{}
	if target != "" {
		query += ` WHERE target = ?`
		args = append(args, target)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                        Entry
			startedNs, connectNs                     int64
			echoCount, echoMean, echoStd, echoMedian sql.NullInt64
			echoTimedOut                             sql.NullBool
			upBytes, upNs, downBytes, downNs         sql.NullInt64
		)
		if err := rows.Scan(&e.RunID, &startedNs, &e.Target, &connectNs,
			&echoCount, &echoMean, &echoStd, &echoMedian, &echoTimedOut,
			&upBytes, &upNs, &downBytes, &downNs); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.StartedAt = time.Unix(0, startedNs)
		e.ConnectTime = time.Duration(connectNs)
		if echoTimedOut.Valid {
			e.Echo = &EchoEntry{
				Count:    int(echoCount.Int64),
				Mean:     time.Duration(echoMean.Int64),
				Std:      time.Duration(echoStd.Int64),
				Median:   time.Duration(echoMedian.Int64),
				TimedOut: echoTimedOut.Bool,
			}
		}
		if upBytes.Valid {
			e.Upload = &TransferEntry{Bytes: upBytes.Int64, Elapsed: time.Duration(upNs.Int64)}
			e.Download = &TransferEntry{Bytes: downBytes.Int64, Elapsed: time.Duration(downNs.Int64)}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
