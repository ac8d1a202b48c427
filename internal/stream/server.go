// Package stream is the Audio Streamer's HTTP surface (spec.md §4.9,
// §6): a gin router serving byte-range/transcoded audio, the job
// trigger/status endpoints for scan, artist-sync and organize, and
// avatar upload. Authentication is pluggable — the router accepts any
// gin.HandlerFunc that populates the Identity context key, defaulting
// to a JWT-based one when the caller doesn't supply an Auth
// collaborator of its own (spec.md §6: "the core never reads session
// cookies or JWT directly").
package stream

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/franz/sonora/internal/catalog"
	"github.com/franz/sonora/internal/coordinator"
	"github.com/franz/sonora/internal/enrich"
	"github.com/franz/sonora/internal/logging"
	"github.com/franz/sonora/internal/organize"
	"github.com/franz/sonora/internal/scan"
	"github.com/franz/sonora/internal/transcode"
)

var component = logging.Component("stream")

// Server holds every collaborator the HTTP handlers dispatch to.
type Server struct {
	store      *catalog.Store
	coord      *coordinator.Coordinator
	scanner    *scan.Scanner
	enricher   *enrich.Enricher
	organizer  *organize.Organizer
	transcoder *transcode.Pool

	musicDir  string
	avatarDir string
}

// Options configures the HTTP surface.
type Options struct {
	MusicDir      string
	AvatarDir     string
	JWTSecret     string // used only if Auth is nil
	Auth          gin.HandlerFunc
	TranscoderCap int
}

// NewRouter builds the gin engine wiring every endpoint from spec.md
// §6 to its collaborator.
func NewRouter(store *catalog.Store, coord *coordinator.Coordinator, scanner *scan.Scanner, enricher *enrich.Enricher, organizer *organize.Organizer, opts Options) *gin.Engine {
	s := newServer(store, coord, scanner, enricher, organizer, opts)
	return newEngine(s, opts)
}

// newServer builds the Server collaborator without attaching routes,
// so tests can reach into it (e.g. its transcoder pool) before wiring
// the gin engine.
func newServer(store *catalog.Store, coord *coordinator.Coordinator, scanner *scan.Scanner, enricher *enrich.Enricher, organizer *organize.Organizer, opts Options) *Server {
	return &Server{
		store:      store,
		coord:      coord,
		scanner:    scanner,
		enricher:   enricher,
		organizer:  organizer,
		transcoder: transcode.NewPool(opts.TranscoderCap),
		musicDir:   opts.MusicDir,
		avatarDir:  opts.AvatarDir,
	}
}

func newEngine(s *Server, opts Options) *gin.Engine {
	auth := opts.Auth
	if auth == nil {
		auth = JWTIdentity(opts.JWTSecret)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	authorized := r.Group("/")
	authorized.Use(auth)
	{
		authorized.GET("/stream/:id", s.streamTrack)

		authorized.GET("/scan/status", s.scanStatus)
		authorized.POST("/scan", s.triggerScan)

		authorized.GET("/sync-artists/status", s.syncStatus)
		authorized.POST("/sync-artists", s.triggerFullSync)
		authorized.POST("/sync-artists/missing", s.triggerMissingSync)
		authorized.POST("/sync-artists/:artist_id", s.triggerOneSync)

		authorized.POST("/library/organize", s.triggerOrganize)

		authorized.POST("/artists/:id/avatar", s.uploadAvatar)
	}

	return r
}

// requestLogger mirrors the teacher's terse progress-log style rather
// than gin's default combined-log-format middleware.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		component.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
