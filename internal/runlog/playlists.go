package runlog

// CreatedPlaylist is a playlist created by an orchestrator run.
type CreatedPlaylist struct {
	ID         int64
	RunID      int64
	PlaylistID string
	Name       string
	IsTest     bool
	Cleaned    bool
	CreatedAt  string
}

// InsertCreatedPlaylist records a playlist created during a run.
func (db *DB) InsertCreatedPlaylist(runID int64, playlistID, name string, isTest bool) error {
	_, err := db.conn.Exec(
		`INSERT INTO created_playlists (run_id, playlist_id, name, is_test)
		VALUES (?, ?, ?, ?)`,
		runID, playlistID, name, boolToInt(isTest),
	)
	return err
}

// GetUncleanedTestPlaylists returns test playlists that have not been
// cleaned up yet, oldest first.
func (db *DB) GetUncleanedTestPlaylists() ([]CreatedPlaylist, error) {
	rows, err := db.conn.Query(
		`SELECT id, run_id, playlist_id, name, is_test, cleaned, created_at
		FROM created_playlists WHERE is_test = 1 AND cleaned = 0 ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playlists []CreatedPlaylist
	for rows.Next() {
		var p CreatedPlaylist
		var isTest, cleaned int
		if err := rows.Scan(&p.ID, &p.RunID, &p.PlaylistID, &p.Name, &isTest, &cleaned, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.IsTest = isTest != 0
		p.Cleaned = cleaned != 0
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

// MarkPlaylistCleaned flags a created playlist as removed from the
// streaming service.
func (db *DB) MarkPlaylistCleaned(id int64) error {
	_, err := db.conn.Exec(`UPDATE created_playlists SET cleaned = 1 WHERE id = ?`, id)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
