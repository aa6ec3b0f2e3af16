package runlog

import (
	"database/sql"
	"time"
)

// Unit is one recorded venue+month processing outcome.
type Unit struct {
	City        string
	Venue       string
	Month       string
	State       string
	Outcome     string
	PlaylistURL string
	Error       string
}

// Run is a recorded orchestrator run.
type Run struct {
	ID         int64
	StartedAt  string
	FinishedAt string
	Updated    int
	Skipped    int
	Failed     int
}

// InsertRun records a finished run and its per-unit outcomes. Returns the
// run ID.
func (db *DB) InsertRun(started, finished time.Time, units []Unit) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var updated, skipped, failed int
	for _, u := range units {
		switch u.Outcome {
		case "updated":
			updated++
		case "failed":
			failed++
		default:
			skipped++
		}
	}

	result, err := tx.Exec(
		`INSERT INTO runs (started_at, finished_at, updated, skipped, failed)
		VALUES (?, ?, ?, ?, ?)`,
		started.Format(time.RFC3339), finished.Format(time.RFC3339), updated, skipped, failed,
	)
	if err != nil {
		return 0, err
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, u := range units {
		_, err := tx.Exec(
			`INSERT INTO run_units (run_id, city, venue, month, state, outcome, playlist_url, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, u.City, u.Venue, u.Month, u.State, u.Outcome, u.PlaylistURL, u.Error,
		)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// GetLastRun returns the most recent run, or nil when none exist.
func (db *DB) GetLastRun() (*Run, error) {
	row := db.conn.QueryRow(
		`SELECT id, started_at, finished_at, updated, skipped, failed
		FROM runs ORDER BY id DESC LIMIT 1`,
	)
	var r Run
	err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Updated, &r.Skipped, &r.Failed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRunUnits returns the recorded units of a run in insertion order.
func (db *DB) GetRunUnits(runID int64) ([]Unit, error) {
	rows, err := db.conn.Query(
		`SELECT city, venue, month, state, outcome, playlist_url, error
		FROM run_units WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var u Unit
		var url, errMsg sql.NullString
		if err := rows.Scan(&u.City, &u.Venue, &u.Month, &u.State, &u.Outcome, &url, &errMsg); err != nil {
			return nil, err
		}
		u.PlaylistURL = url.String
		u.Error = errMsg.String
		units = append(units, u)
	}
	return units, rows.Err()
}

// Stats contains aggregate run log statistics.
type Stats struct {
	TotalRuns        int
	TotalUpdated     int
	TotalFailed      int
	CreatedPlaylists int
	PendingCleanup   int
}

// GetStats returns aggregate statistics across all runs.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	err := db.conn.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(updated), 0), COALESCE(SUM(failed), 0) FROM runs`,
	).Scan(&s.TotalRuns, &s.TotalUpdated, &s.TotalFailed)
	if err != nil {
		return nil, err
	}
	err = db.conn.QueryRow(`SELECT COUNT(*) FROM created_playlists`).Scan(&s.CreatedPlaylists)
	if err != nil {
		return nil, err
	}
	err = db.conn.QueryRow(
		`SELECT COUNT(*) FROM created_playlists WHERE is_test = 1 AND cleaned = 0`,
	).Scan(&s.PendingCleanup)
	if err != nil {
		return nil, err
	}
	return s, nil
}
