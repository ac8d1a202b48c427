package catalog

import "time"

// PlayHistoryEntry is a row of the play_history table.
type PlayHistoryEntry struct {
	ID       int64
	UserID   string
	TrackID  int64
	PlayedAt time.Time
}

// RecordPlay appends a play history entry. History is append-only;
// there is no update or delete of individual entries.
func (s *Store) RecordPlay(userID string, trackID int64) error {
	_, err := s.db.Exec(`INSERT INTO play_history (user_id, track_id) VALUES (?, ?)`, userID, trackID)
	return err
}

// RecentPlays returns a user's most recently played tracks, most
// recent first, capped at limit rows.
func (s *Store) RecentPlays(userID string, limit int) ([]*Track, error) {
	rows, err := s.db.Query(`
		SELECT t.id, t.title, t.album_id, t.artist_id, t.duration_s, t.track_no, t.disc_no, t.path,
		       t.bitrate, t.format, t.size_bytes, t.lyrics, t.lyric_offset_ms, t.embedded_art, t.created_at, t.updated_at
		FROM tracks t
		JOIN play_history h ON h.track_id = t.id
		WHERE h.user_id = ?
		ORDER BY h.played_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTracks(rows)
}
