package catalog

import (
	"database/sql"
	"errors"
	"time"
)

// Track is a row of the tracks table.
type Track struct {
	ID            int64
	Title         string
	AlbumID       sql.NullInt64
	ArtistID      sql.NullInt64
	DurationS     float64
	TrackNo       sql.NullInt64
	DiscNo        sql.NullInt64
	Path          string
	Bitrate       sql.NullInt64
	Format        sql.NullString
	SizeBytes     sql.NullInt64
	Lyrics        sql.NullString
	LyricOffsetMs int64
	EmbeddedArt   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TrackUpsert is the input to UpsertTrack: everything the Physical
// Scanner discovers about one file on a single walk.
type TrackUpsert struct {
	Title       string
	AlbumID     int64 // 0 means NULL (no album resolved)
	ArtistID    int64 // 0 means NULL
	DurationS   float64
	TrackNo     int
	DiscNo      int
	Path        string
	Bitrate     int
	Format      string
	SizeBytes   int64
	EmbeddedArt bool
}

// UpsertTrack inserts a track or, if a row already exists at the same
// path, updates it in place (spec.md §4.6: path is the sole identity
// key across rescans, so retagging a file updates its existing row
// instead of creating a duplicate).
func (s *Store) UpsertTrack(t TrackUpsert) (int64, error) {
	_, err := s.db.Exec(`
		INSERT INTO tracks (title, album_id, artist_id, duration_s, track_no, disc_no, path, bitrate, format, size_bytes, embedded_art)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET
			title = excluded.title,
			album_id = excluded.album_id,
			artist_id = excluded.artist_id,
			duration_s = excluded.duration_s,
			track_no = excluded.track_no,
			disc_no = excluded.disc_no,
			bitrate = excluded.bitrate,
			format = excluded.format,
			size_bytes = excluded.size_bytes,
			embedded_art = excluded.embedded_art,
			updated_at = CURRENT_TIMESTAMP`,
		t.Title, nullIfZero(t.AlbumID), nullIfZero(t.ArtistID), t.DurationS,
		nullIfZero(int64(t.TrackNo)), nullIfZero(int64(t.DiscNo)), t.Path,
		nullIfZero(int64(t.Bitrate)), nullIfEmpty(t.Format), nullIfZero(t.SizeBytes),
		boolToInt(t.EmbeddedArt))
	if err != nil {
		return 0, err
	}

	// LastInsertId is not updated when ON CONFLICT takes the UPDATE
	// branch (it keeps the previous insert's id), so resolve the id by path.
	track, err := s.TrackByPath(t.Path)
	if err != nil {
		return 0, err
	}
	return track.ID, nil
}

// TrackByPath looks up a track by its unique filesystem path.
func (s *Store) TrackByPath(path string) (*Track, error) {
	row := s.db.QueryRow(`
		SELECT id, title, album_id, artist_id, duration_s, track_no, disc_no, path, bitrate, format, size_bytes, lyrics, lyric_offset_ms, embedded_art, created_at, updated_at
		FROM tracks WHERE path = ?`, path)
	return scanTrack(row)
}

// TrackByID looks up a track by primary key.
func (s *Store) TrackByID(id int64) (*Track, error) {
	row := s.db.QueryRow(`
		SELECT id, title, album_id, artist_id, duration_s, track_no, disc_no, path, bitrate, format, size_bytes, lyrics, lyric_offset_ms, embedded_art, created_at, updated_at
		FROM tracks WHERE id = ?`, id)
	return scanTrack(row)
}

func scanTrack(row *sql.Row) (*Track, error) {
	var t Track
	var embeddedArt int
	err := row.Scan(&t.ID, &t.Title, &t.AlbumID, &t.ArtistID, &t.DurationS, &t.TrackNo, &t.DiscNo,
		&t.Path, &t.Bitrate, &t.Format, &t.SizeBytes, &t.Lyrics, &t.LyricOffsetMs, &embeddedArt,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.EmbeddedArt = embeddedArt != 0
	return &t, nil
}

// TracksByAlbum returns every track of an album ordered by disc then track number.
func (s *Store) TracksByAlbum(albumID int64) ([]*Track, error) {
	rows, err := s.db.Query(`
		SELECT id, title, album_id, artist_id, duration_s, track_no, disc_no, path, bitrate, format, size_bytes, lyrics, lyric_offset_ms, embedded_art, created_at, updated_at
		FROM tracks WHERE album_id = ? ORDER BY disc_no, track_no`, albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTracks(rows)
}

// AllTrackPaths returns every cataloged track path, used by scan
// reconciliation to detect files removed from disk since the last scan.
func (s *Store) AllTrackPaths() ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM tracks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// AllTracks returns every track row, used by the Organizer to plan a
// full library reorganization.
func (s *Store) AllTracks() ([]*Track, error) {
	rows, err := s.db.Query(`
		SELECT id, title, album_id, artist_id, duration_s, track_no, disc_no, path, bitrate, format, size_bytes, lyrics, lyric_offset_ms, embedded_art, created_at, updated_at
		FROM tracks ORDER BY album_id, disc_no, track_no`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTracks(rows)
}

// DeleteTrackByPath removes a track whose backing file no longer
// exists on disk.
func (s *Store) DeleteTrackByPath(path string) error {
	_, err := s.db.Exec(`DELETE FROM tracks WHERE path = ?`, path)
	return err
}

// UpdateTrackPath rewrites a track's path after the Organizer moves the
// backing file, keeping the path-is-identity invariant intact.
func (s *Store) UpdateTrackPath(id int64, newPath string) error {
	_, err := s.db.Exec(`UPDATE tracks SET path = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, newPath, id)
	return err
}

// UpdateTrackLyrics persists lyric text and a millisecond sync offset
// found by the Asset Probe.
func (s *Store) UpdateTrackLyrics(id int64, lyrics string, offsetMs int64) error {
	_, err := s.db.Exec(`
		UPDATE tracks SET lyrics = ?, lyric_offset_ms = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullIfEmpty(lyrics), offsetMs, id)
	return err
}

func scanTracks(rows *sql.Rows) ([]*Track, error) {
	var tracks []*Track
	for rows.Next() {
		var t Track
		var embeddedArt int
		if err := rows.Scan(&t.ID, &t.Title, &t.AlbumID, &t.ArtistID, &t.DurationS, &t.TrackNo, &t.DiscNo,
			&t.Path, &t.Bitrate, &t.Format, &t.SizeBytes, &t.Lyrics, &t.LyricOffsetMs, &embeddedArt,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.EmbeddedArt = embeddedArt != 0
		tracks = append(tracks, &t)
	}
	return tracks, rows.Err()
}

func nullIfZero(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
