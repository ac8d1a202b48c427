package catalog

import (
	"database/sql"
	"errors"
	"time"
)

// Artist is a row of the artists table.
type Artist struct {
	ID              int64
	Name            string
	Bio             sql.NullString
	ImageLocalPath  sql.NullString
	ExternalID      sql.NullString
	SyncLastError   sql.NullString
	SyncLastErrorAt sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ErrNotFound is returned when a lookup by id or unique key finds no row.
var ErrNotFound = errors.New("catalog: not found")

// GetOrCreateArtist resolves an artist by exact name, inserting a new
// row if none exists. Names are matched exactly; callers normalize with
// pathsafe.CanonicalArtistCase before calling this so tag variance
// ("The Beatles" vs "the beatles") converges on one row.
//
// Dedup is linearized by the unique constraint on artists.name, not by
// any application-level lock: several scan workers can race a lookup
// against the same not-yet-seen artist, so the insert must be the
// thing that settles it, with the loser resolving to the winner's row
// instead of erroring out.
func (s *Store) GetOrCreateArtist(name string) (*Artist, error) {
	var id int64
	err := s.db.QueryRow(`
		INSERT INTO artists (name) VALUES (?)
		ON CONFLICT (name) DO UPDATE SET name = excluded.name
		RETURNING id`, name).Scan(&id)
	if err != nil {
		return nil, err
	}
	return s.ArtistByID(id)
}

const artistColumns = `id, name, bio, image_local_path, external_id, sync_last_error, sync_last_error_at, created_at, updated_at`

// ArtistByName looks up an artist by exact name match.
func (s *Store) ArtistByName(name string) (*Artist, error) {
	row := s.db.QueryRow(`SELECT `+artistColumns+` FROM artists WHERE name = ?`, name)
	return scanArtist(row)
}

// ArtistByID looks up an artist by primary key.
func (s *Store) ArtistByID(id int64) (*Artist, error) {
	row := s.db.QueryRow(`SELECT `+artistColumns+` FROM artists WHERE id = ?`, id)
	return scanArtist(row)
}

func scanArtist(row *sql.Row) (*Artist, error) {
	var a Artist
	err := row.Scan(&a.ID, &a.Name, &a.Bio, &a.ImageLocalPath, &a.ExternalID,
		&a.SyncLastError, &a.SyncLastErrorAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ArtistsMissingExternalID returns artists that have never been
// successfully enriched against a metadata provider, used by the
// "sync missing only" entry point.
func (s *Store) ArtistsMissingExternalID() ([]*Artist, error) {
	rows, err := s.db.Query(`SELECT ` + artistColumns + ` FROM artists WHERE external_id IS NULL ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArtists(rows)
}

// AllArtists returns every artist ordered by name.
func (s *Store) AllArtists() ([]*Artist, error) {
	rows, err := s.db.Query(`SELECT ` + artistColumns + ` FROM artists ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArtists(rows)
}

func scanArtists(rows *sql.Rows) ([]*Artist, error) {
	var artists []*Artist
	for rows.Next() {
		var a Artist
		if err := rows.Scan(&a.ID, &a.Name, &a.Bio, &a.ImageLocalPath, &a.ExternalID,
			&a.SyncLastError, &a.SyncLastErrorAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		artists = append(artists, &a)
	}
	return artists, rows.Err()
}

// UpdateArtistEnrichment persists the result of a successful provider
// lookup: canonical bio, cached portrait path, and the provider's
// external id (so future syncs are idempotent).
func (s *Store) UpdateArtistEnrichment(id int64, bio, imageLocalPath, externalID string) error {
	_, err := s.db.Exec(`
		UPDATE artists
		SET bio = ?, image_local_path = ?, external_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, nullIfEmpty(bio), nullIfEmpty(imageLocalPath), nullIfEmpty(externalID), id)
	return err
}

// SetArtistSyncError records a terminal enrichment failure against a
// single artist, so a batch sync with several failures leaves every
// one of them visible rather than only the last (the aggregate
// artist_sync_status row only ever holds one).
func (s *Store) SetArtistSyncError(id int64, message string) error {
	_, err := s.db.Exec(`
		UPDATE artists SET sync_last_error = ?, sync_last_error_at = CURRENT_TIMESTAMP WHERE id = ?`,
		message, id)
	return err
}

// ClearArtistSyncError wipes a prior failure once an artist syncs
// successfully.
func (s *Store) ClearArtistSyncError(id int64) error {
	_, err := s.db.Exec(`
		UPDATE artists SET sync_last_error = NULL, sync_last_error_at = NULL WHERE id = ?`, id)
	return err
}

// RenameArtist updates the canonical display name, used when the
// Organizer or Enricher settles on a corrected capitalization.
func (s *Store) RenameArtist(id int64, name string) error {
	_, err := s.db.Exec(`UPDATE artists SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, name, id)
	return err
}

// DeleteOrphanArtists removes artists that no longer have any tracks,
// used during scan reconciliation after files are deleted from disk.
func (s *Store) DeleteOrphanArtists() (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM artists WHERE id NOT IN (
			SELECT DISTINCT artist_id FROM tracks WHERE artist_id IS NOT NULL
		)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
