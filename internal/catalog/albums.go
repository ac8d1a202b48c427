package catalog

import (
	"database/sql"
	"errors"
	"time"
)

// Album is a row of the albums table.
type Album struct {
	ID             int64
	Title          string
	ArtistID       int64
	ReleaseYear    sql.NullInt64
	CoverLocalPath sql.NullString
	ExternalID     sql.NullString
	ReleaseGroupID sql.NullString
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GetOrCreateAlbum resolves an album by (title, artist) pair, inserting
// a new row if none exists.
//
// Like GetOrCreateArtist, dedup rides the (title, artist_id) unique
// constraint rather than a lock: two scan workers racing the same new
// album both attempt the insert, and the one that loses the constraint
// resolves to the winner's row via the ON CONFLICT branch instead of
// bubbling up a UNIQUE violation.
func (s *Store) GetOrCreateAlbum(title string, artistID int64, releaseYear int) (*Album, error) {
	var year interface{}
	if releaseYear > 0 {
		year = releaseYear
	}

	var id int64
	err := s.db.QueryRow(`
		INSERT INTO albums (title, artist_id, release_year) VALUES (?, ?, ?)
		ON CONFLICT (title, artist_id) DO UPDATE SET title = excluded.title
		RETURNING id`, title, artistID, year).Scan(&id)
	if err != nil {
		return nil, err
	}
	return s.AlbumByID(id)
}

// AlbumByTitleAndArtist looks up an album by its unique (title, artist_id) pair.
func (s *Store) AlbumByTitleAndArtist(title string, artistID int64) (*Album, error) {
	row := s.db.QueryRow(`
		SELECT id, title, artist_id, release_year, cover_local_path, external_id, release_group_id, created_at, updated_at
		FROM albums WHERE title = ? AND artist_id = ?`, title, artistID)
	return scanAlbum(row)
}

// AlbumByID looks up an album by primary key.
func (s *Store) AlbumByID(id int64) (*Album, error) {
	row := s.db.QueryRow(`
		SELECT id, title, artist_id, release_year, cover_local_path, external_id, release_group_id, created_at, updated_at
		FROM albums WHERE id = ?`, id)
	return scanAlbum(row)
}

func scanAlbum(row *sql.Row) (*Album, error) {
	var a Album
	err := row.Scan(&a.ID, &a.Title, &a.ArtistID, &a.ReleaseYear, &a.CoverLocalPath, &a.ExternalID, &a.ReleaseGroupID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AlbumsByArtist returns every album for an artist ordered by release year.
func (s *Store) AlbumsByArtist(artistID int64) ([]*Album, error) {
	rows, err := s.db.Query(`
		SELECT id, title, artist_id, release_year, cover_local_path, external_id, release_group_id, created_at, updated_at
		FROM albums WHERE artist_id = ? ORDER BY release_year, title`, artistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var albums []*Album
	for rows.Next() {
		var a Album
		if err := rows.Scan(&a.ID, &a.Title, &a.ArtistID, &a.ReleaseYear, &a.CoverLocalPath, &a.ExternalID, &a.ReleaseGroupID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		albums = append(albums, &a)
	}
	return albums, rows.Err()
}

// UpdateAlbumCover persists a content-hash-addressed cover path found
// by the Asset Probe or fetched from Cover Art Archive.
func (s *Store) UpdateAlbumCover(id int64, coverLocalPath string) error {
	_, err := s.db.Exec(`
		UPDATE albums SET cover_local_path = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullIfEmpty(coverLocalPath), id)
	return err
}

// UpdateAlbumEnrichment persists the release group linkage discovered
// during artist enrichment.
func (s *Store) UpdateAlbumEnrichment(id int64, externalID, releaseGroupID string) error {
	_, err := s.db.Exec(`
		UPDATE albums SET external_id = ?, release_group_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullIfEmpty(externalID), nullIfEmpty(releaseGroupID), id)
	return err
}

// DeleteOrphanAlbums removes albums that no longer have any tracks.
func (s *Store) DeleteOrphanAlbums() (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM albums WHERE id NOT IN (
			SELECT DISTINCT album_id FROM tracks WHERE album_id IS NOT NULL
		)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
