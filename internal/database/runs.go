package database

import (
	"database/sql"
	"time"
)

const ledgerTimeFormat = time.RFC3339

// RecordRun appends a run summary to the ledger and returns its ID.
func (db *DB) RecordRun(r RunReport) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO runs (started_at, finished_at, discovered, processed, failed, accepted, discarded)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt.UTC().Format(ledgerTimeFormat), r.FinishedAt.UTC().Format(ledgerTimeFormat),
		r.Discovered, r.Processed, r.Failed, r.Accepted, r.Discarded,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// LastRun returns the most recent run, or nil if none was recorded.
func (db *DB) LastRun() (*RunReport, error) {
	runs, err := db.RecentRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// RecentRuns returns up to limit runs, most recent first.
func (db *DB) RecentRuns(limit int) ([]RunReport, error) {
	rows, err := db.conn.Query(
		`SELECT id, started_at, finished_at, discovered, processed, failed, accepted, discarded
		FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]RunReport, error) {
	var runs []RunReport
	for rows.Next() {
		var r RunReport
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Discovered, &r.Processed,
			&r.Failed, &r.Accepted, &r.Discarded); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(ledgerTimeFormat, started)
		r.FinishedAt, _ = time.Parse(ledgerTimeFormat, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
