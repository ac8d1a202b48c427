package catalog

import "time"

// Favorite is a row of the favorites table.
type Favorite struct {
	UserID    string
	TrackID   int64
	CreatedAt time.Time
}

// AddFavorite marks a track as favorited by a user. Idempotent: adding
// an already-favorited track is a no-op.
func (s *Store) AddFavorite(userID string, trackID int64) error {
	_, err := s.db.Exec(`
		INSERT INTO favorites (user_id, track_id) VALUES (?, ?)
		ON CONFLICT (user_id, track_id) DO NOTHING`, userID, trackID)
	return err
}

// RemoveFavorite un-favorites a track. Removing a non-favorite is a no-op.
func (s *Store) RemoveFavorite(userID string, trackID int64) error {
	_, err := s.db.Exec(`DELETE FROM favorites WHERE user_id = ? AND track_id = ?`, userID, trackID)
	return err
}

// IsFavorite reports whether a user has favorited a track.
func (s *Store) IsFavorite(userID string, trackID int64) (bool, error) {
	var exists int
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = ? AND track_id = ?)`,
		userID, trackID).Scan(&exists)
	return exists != 0, err
}

// FavoriteTracks returns every track a user has favorited, most recently added first.
func (s *Store) FavoriteTracks(userID string) ([]*Track, error) {
	rows, err := s.db.Query(`
		SELECT t.id, t.title, t.album_id, t.artist_id, t.duration_s, t.track_no, t.disc_no, t.path,
		       t.bitrate, t.format, t.size_bytes, t.lyrics, t.lyric_offset_ms, t.embedded_art, t.created_at, t.updated_at
		FROM tracks t
		JOIN favorites f ON f.track_id = t.id
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTracks(rows)
}
