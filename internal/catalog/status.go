package catalog

import (
	"database/sql"
)

// JobStatus mirrors the single-row status tables the Job Coordinator
// reads and writes: scan_status, artist_sync_status, organize_status.
// The three tables share this shape under different column names.
type JobStatus struct {
	Running       bool
	CurrentCount  int
	TotalCount    int
	LastError     sql.NullString
	LastFinishAt  sql.NullTime
	RunID         sql.NullString
}

// ScanStatus reads the current scan_status row.
func (s *Store) ScanStatus() (*JobStatus, error) {
	row := s.db.QueryRow(`
		SELECT is_scanning, current_count, total_count, last_error, last_scan_at, run_id
		FROM scan_status WHERE id = 1`)
	return scanJobStatus(row)
}

// SetScanStatus overwrites the scan_status row.
func (s *Store) SetScanStatus(js JobStatus) error {
	_, err := s.db.Exec(`
		UPDATE scan_status SET is_scanning = ?, current_count = ?, total_count = ?,
			last_error = ?, last_scan_at = ?, run_id = ? WHERE id = 1`,
		boolToInt(js.Running), js.CurrentCount, js.TotalCount, js.LastError, js.LastFinishAt, js.RunID)
	return err
}

// SyncStatus reads the current artist_sync_status row.
func (s *Store) SyncStatus() (*JobStatus, error) {
	row := s.db.QueryRow(`
		SELECT is_syncing, current_count, total_count, last_error, last_sync_at, run_id
		FROM artist_sync_status WHERE id = 1`)
	return scanJobStatus(row)
}

// SetSyncStatus overwrites the artist_sync_status row.
func (s *Store) SetSyncStatus(js JobStatus) error {
	_, err := s.db.Exec(`
		UPDATE artist_sync_status SET is_syncing = ?, current_count = ?, total_count = ?,
			last_error = ?, last_sync_at = ?, run_id = ? WHERE id = 1`,
		boolToInt(js.Running), js.CurrentCount, js.TotalCount, js.LastError, js.LastFinishAt, js.RunID)
	return err
}

// OrganizeStatus reads the current organize_status row.
func (s *Store) OrganizeStatus() (*JobStatus, error) {
	row := s.db.QueryRow(`
		SELECT is_organizing, current_count, total_count, last_error, last_organize_at, run_id
		FROM organize_status WHERE id = 1`)
	return scanJobStatus(row)
}

// SetOrganizeStatus overwrites the organize_status row.
func (s *Store) SetOrganizeStatus(js JobStatus) error {
	_, err := s.db.Exec(`
		UPDATE organize_status SET is_organizing = ?, current_count = ?, total_count = ?,
			last_error = ?, last_organize_at = ?, run_id = ? WHERE id = 1`,
		boolToInt(js.Running), js.CurrentCount, js.TotalCount, js.LastError, js.LastFinishAt, js.RunID)
	return err
}

func scanJobStatus(row *sql.Row) (*JobStatus, error) {
	var js JobStatus
	var running int
	if err := row.Scan(&running, &js.CurrentCount, &js.TotalCount, &js.LastError, &js.LastFinishAt, &js.RunID); err != nil {
		return nil, err
	}
	js.Running = running != 0
	return &js, nil
}

// ClearAllJobFlags forces every "running" flag off, run once at process
// startup so a crash mid-scan/sync/organize doesn't leave the
// coordinator permanently believing a job is in progress.
func (s *Store) ClearAllJobFlags() error {
	return s.Transaction(func(tx *sql.Tx) error {
		stmts := []string{
			`UPDATE scan_status SET is_scanning = 0 WHERE id = 1`,
			`UPDATE artist_sync_status SET is_syncing = 0 WHERE id = 1`,
			`UPDATE organize_status SET is_organizing = 0 WHERE id = 1`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
