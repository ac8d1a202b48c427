package catalog

import (
	"database/sql"
	"errors"
	"time"
)

// Playlist is a row of the playlists table.
type Playlist struct {
	ID          int64
	UserID      string
	Name        string
	Description sql.NullString
	IsPublic    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreatePlaylist inserts a new empty playlist owned by userID.
func (s *Store) CreatePlaylist(userID, name, description string, isPublic bool) (*Playlist, error) {
	res, err := s.db.Exec(`
		INSERT INTO playlists (user_id, name, description, is_public) VALUES (?, ?, ?, ?)`,
		userID, name, nullIfEmpty(description), boolToInt(isPublic))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.PlaylistByID(id)
}

// PlaylistByID looks up a playlist by primary key.
func (s *Store) PlaylistByID(id int64) (*Playlist, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, name, description, is_public, created_at, updated_at
		FROM playlists WHERE id = ?`, id)
	return scanPlaylist(row)
}

func scanPlaylist(row *sql.Row) (*Playlist, error) {
	var p Playlist
	var isPublic int
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &isPublic, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.IsPublic = isPublic != 0
	return &p, nil
}

// PlaylistsByUser returns every playlist owned by a user.
func (s *Store) PlaylistsByUser(userID string) ([]*Playlist, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, name, description, is_public, created_at, updated_at
		FROM playlists WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playlists []*Playlist
	for rows.Next() {
		var p Playlist
		var isPublic int
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &isPublic, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.IsPublic = isPublic != 0
		playlists = append(playlists, &p)
	}
	return playlists, rows.Err()
}

// DeletePlaylist removes a playlist and its membership rows.
func (s *Store) DeletePlaylist(id int64) error {
	return s.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM playlist_tracks WHERE playlist_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM playlists WHERE id = ?`, id)
		return err
	})
}

// PlaylistTracks returns the ordered membership of a playlist.
func (s *Store) PlaylistTracks(playlistID int64) ([]*Track, error) {
	rows, err := s.db.Query(`
		SELECT t.id, t.title, t.album_id, t.artist_id, t.duration_s, t.track_no, t.disc_no, t.path,
		       t.bitrate, t.format, t.size_bytes, t.lyrics, t.lyric_offset_ms, t.embedded_art, t.created_at, t.updated_at
		FROM tracks t
		JOIN playlist_tracks pt ON pt.track_id = t.id
		WHERE pt.playlist_id = ?
		ORDER BY pt.position`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTracks(rows)
}

// AppendToPlaylist adds a track at the end of a playlist, assigning it
// the next dense position.
func (s *Store) AppendToPlaylist(playlistID, trackID int64) error {
	return s.Transaction(func(tx *sql.Tx) error {
		var next int
		if err := tx.QueryRow(`
			SELECT COALESCE(MAX(position), -1) + 1 FROM playlist_tracks WHERE playlist_id = ?`,
			playlistID).Scan(&next); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO playlist_tracks (playlist_id, track_id, position) VALUES (?, ?, ?)`,
			playlistID, trackID, next)
		return err
	})
}

// RemoveFromPlaylist removes a track from a playlist and compacts the
// remaining positions so they stay dense (0..n-1) for reordering.
func (s *Store) RemoveFromPlaylist(playlistID, trackID int64) error {
	return s.Transaction(func(tx *sql.Tx) error {
		var removedPos int
		err := tx.QueryRow(`
			SELECT position FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?`,
			playlistID, trackID).Scan(&removedPos)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`
			DELETE FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?`,
			playlistID, trackID); err != nil {
			return err
		}

		_, err = tx.Exec(`
			UPDATE playlist_tracks SET position = position - 1
			WHERE playlist_id = ? AND position > ?`, playlistID, removedPos)
		return err
	})
}

// ReorderPlaylist replaces a playlist's track order wholesale, taking
// an ordered slice of track ids.
func (s *Store) ReorderPlaylist(playlistID int64, trackIDs []int64) error {
	return s.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM playlist_tracks WHERE playlist_id = ?`, playlistID); err != nil {
			return err
		}
		for i, trackID := range trackIDs {
			if _, err := tx.Exec(`
				INSERT INTO playlist_tracks (playlist_id, track_id, position) VALUES (?, ?, ?)`,
				playlistID, trackID, i); err != nil {
				return err
			}
		}
		return nil
	})
}
