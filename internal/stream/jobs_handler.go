package stream

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/franz/sonora/internal/apperr"
	"github.com/franz/sonora/internal/catalog"
)

// jobStatusResponse mirrors the single-row status tables from spec.md
// §3 over the wire, translating sql.Null* into plain JSON values.
type jobStatusResponse struct {
	Running      bool   `json:"running"`
	CurrentCount int    `json:"current_count"`
	TotalCount   int    `json:"total_count"`
	LastError    string `json:"last_error,omitempty"`
	LastFinishAt string `json:"last_finish_at,omitempty"`
}

func toJobStatusResponse(js *catalog.JobStatus) jobStatusResponse {
	resp := jobStatusResponse{
		Running:      js.Running,
		CurrentCount: js.CurrentCount,
		TotalCount:   js.TotalCount,
	}
	if js.LastError.Valid {
		resp.LastError = js.LastError.String
	}
	if js.LastFinishAt.Valid {
		resp.LastFinishAt = js.LastFinishAt.Time.Format(time.RFC3339)
	}
	return resp
}

func (s *Server) scanStatus(c *gin.Context) {
	js, err := s.store.ScanStatus()
	if err != nil {
		writeError(c, apperr.Internal(err, "read scan status"))
		return
	}
	c.JSON(200, toJobStatusResponse(js))
}

func (s *Server) syncStatus(c *gin.Context) {
	js, err := s.store.SyncStatus()
	if err != nil {
		writeError(c, apperr.Internal(err, "read sync status"))
		return
	}
	c.JSON(200, toJobStatusResponse(js))
}

// triggerScan kicks off a scan in the background and returns
// immediately: the caller polls GET /scan/status for progress, per
// spec.md §7 ("long-running jobs are observed via status endpoints").
func (s *Server) triggerScan(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	if err := s.scanner.BeginAsync(context.Background(), s.musicDir); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(202, gin.H{"status": "started"})
}

func (s *Server) triggerFullSync(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	if err := s.enricher.BeginFullSyncAsync(context.Background()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(202, gin.H{"status": "started"})
}

func (s *Server) triggerMissingSync(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	if err := s.enricher.BeginMissingSyncAsync(context.Background()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(202, gin.H{"status": "started"})
}

// triggerOneSync is the one enrichment variant that runs synchronously:
// it targets a single artist, so its cost is bounded, and a 422 needs
// to reach this specific caller rather than only the status endpoint.
func (s *Server) triggerOneSync(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	artistID, err := parseID(c.Param("artist_id"))
	if err != nil {
		writeError(c, apperr.Validation("invalid artist id"))
		return
	}
	if err := s.enricher.SyncOne(c.Request.Context(), artistID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"status": "synced"})
}

func (s *Server) triggerOrganize(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	if err := s.organizer.BeginAsync(context.Background()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(202, gin.H{"status": "started"})
}
