// Package coordinator is the Job Coordinator (spec.md §4.5): it keeps
// the scan, artist-sync, and organize jobs mutually exclusive with
// themselves (no two scans at once) and reports live progress through
// the Catalog Store's status rows so the HTTP surface can poll them.
package coordinator

import (
	"database/sql"
	"sync"

	"github.com/franz/sonora/internal/apperr"
	"github.com/franz/sonora/internal/catalog"
	"github.com/franz/sonora/internal/logging"
	"github.com/google/uuid"
)

// Job identifies one of the three coordinated background jobs.
type Job int

const (
	JobScan Job = iota
	JobSync
	JobOrganize
)

func (j Job) String() string {
	switch j {
	case JobScan:
		return "scan"
	case JobSync:
		return "sync"
	case JobOrganize:
		return "organize"
	default:
		return "unknown"
	}
}

// Coordinator serializes the three background jobs against the
// Catalog Store's status rows. One process-local mutex over a per-job
// lock map guards
// the check-then-set race between TryBegin calls that a bare SQLite
// UPDATE cannot express atomically with SetMaxOpenConns(1) alone once
// multiple goroutines are involved.
type Coordinator struct {
	store *catalog.Store

	mu    sync.Mutex
	locks map[Job]bool
}

// New creates a Coordinator backed by the given Catalog Store.
func New(store *catalog.Store) *Coordinator {
	return &Coordinator{
		store: store,
		locks: make(map[Job]bool),
	}
}

// SelfHeal force-clears every job's running flag. Call once at process
// startup: a prior process crashing mid-scan would otherwise leave the
// coordinator permanently believing a job is in progress, since the
// flag lives in SQLite and outlives the process.
func (c *Coordinator) SelfHeal() error {
	c.mu.Lock()
	c.locks = make(map[Job]bool)
	c.mu.Unlock()

	if err := c.store.ClearAllJobFlags(); err != nil {
		return err
	}
	logging.InfoLog("coordinator: cleared stale job flags on startup")
	return nil
}

// TryBegin attempts to start a job, returning a run id on success. It
// fails with the job's busy sentinel if the job (or, per spec.md's
// concurrency rule, any other job that must run alone) is already
// running.
func (c *Coordinator) TryBegin(job Job) (runID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locks[job] {
		return "", busyError(job)
	}

	// Organize requires the other two jobs to be idle: it relocates
	// files the scanner or enricher might otherwise be touching.
	if job == JobOrganize && (c.locks[JobScan] || c.locks[JobSync]) {
		return "", apperr.ErrOrganizeBusy
	}
	if job != JobOrganize && c.locks[JobOrganize] {
		return "", apperr.ErrOrganizeBusy
	}

	runID = uuid.New().String()
	c.locks[job] = true

	status := catalog.JobStatus{Running: true, RunID: nullString(runID)}
	if setErr := c.setStatus(job, status); setErr != nil {
		delete(c.locks, job)
		return "", setErr
	}

	logging.InfoLog("coordinator: %s started run=%s", job, runID)
	return runID, nil
}

// Report updates a running job's progress counters.
func (c *Coordinator) Report(job Job, runID string, current, total int) error {
	existing, err := c.getStatus(job)
	if err != nil {
		return err
	}
	existing.CurrentCount = current
	existing.TotalCount = total
	existing.Running = true
	existing.RunID = nullString(runID)
	return c.setStatus(job, *existing)
}

// ReportError records a non-fatal, single-item failure against a
// running job's last_error field without touching its running flag or
// counters (spec.md §4.6: a single unreadable file is logged and
// skipped, it does not end the scan).
func (c *Coordinator) ReportError(job Job, msg string) error {
	existing, err := c.getStatus(job)
	if err != nil {
		return err
	}
	existing.LastError = nullString(msg)
	return c.setStatus(job, *existing)
}

// End marks a job finished, recording the terminal error (nil on
// success) and releasing the process-local lock.
func (c *Coordinator) End(job Job, runID string, jobErr error) error {
	c.mu.Lock()
	delete(c.locks, job)
	c.mu.Unlock()

	existing, err := c.getStatus(job)
	if err != nil {
		return err
	}
	existing.Running = false
	if jobErr != nil {
		existing.LastError = nullString(jobErr.Error())
		logging.ErrorLog("coordinator: %s run=%s failed: %v", job, runID, jobErr)
	} else {
		existing.LastError.Valid = false
		logging.SuccessLog("coordinator: %s run=%s completed", job, runID)
	}
	return c.setStatus(job, *existing)
}

func (c *Coordinator) getStatus(job Job) (*catalog.JobStatus, error) {
	switch job {
	case JobScan:
		return c.store.ScanStatus()
	case JobSync:
		return c.store.SyncStatus()
	case JobOrganize:
		return c.store.OrganizeStatus()
	default:
		return nil, apperr.Validation("unknown job %v", job)
	}
}

func (c *Coordinator) setStatus(job Job, status catalog.JobStatus) error {
	switch job {
	case JobScan:
		return c.store.SetScanStatus(status)
	case JobSync:
		return c.store.SetSyncStatus(status)
	case JobOrganize:
		return c.store.SetOrganizeStatus(status)
	default:
		return apperr.Validation("unknown job %v", job)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func busyError(job Job) error {
	switch job {
	case JobScan:
		return apperr.ErrScanBusy
	case JobSync:
		return apperr.ErrSyncBusy
	case JobOrganize:
		return apperr.ErrOrganizeBusy
	default:
		return apperr.Validation("unknown job %v", job)
	}
}
