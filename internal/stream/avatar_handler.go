package stream

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/franz/sonora/internal/apperr"
	"github.com/franz/sonora/internal/pathsafe"
)

// sniffHeaderSize is enough to cover every signature filetype.Match
// checks against; matching the library's own recommendation avoids
// reading whole multi-megabyte uploads just to classify them.
const sniffHeaderSize = 261

// uploadAvatar implements POST /artists/{id}/avatar (spec.md §6): a
// multipart image upload. The declared Content-Type header is never
// trusted; classification is by magic number only (spec.md §6,
// "Magic-Number validation is mandatory on all uploaded image files").
func (s *Server) uploadAvatar(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}

	artistID, err := parseID(c.Param("id"))
	if err != nil {
		writeError(c, apperr.Validation("invalid artist id"))
		return
	}
	if _, err := s.store.ArtistByID(artistID); err != nil {
		writeError(c, apperr.NotFound("artist %d not found", artistID))
		return
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		writeError(c, apperr.Validation("missing avatar file"))
		return
	}

	upload, err := fileHeader.Open()
	if err != nil {
		writeError(c, apperr.Internal(err, "open uploaded avatar"))
		return
	}
	defer upload.Close()

	header := make([]byte, sniffHeaderSize)
	n, err := io.ReadFull(upload, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		writeError(c, apperr.Internal(err, "read uploaded avatar"))
		return
	}
	header = header[:n]

	if !filetype.IsImage(header) {
		writeError(c, apperr.Validation("uploaded file is not a recognized image format"))
		return
	}
	kind, err := filetype.Match(header)
	if err != nil || kind == filetype.Unknown {
		writeError(c, apperr.Validation("uploaded file is not a recognized image format"))
		return
	}

	destName := fmt.Sprintf("%d.%s", artistID, kind.Extension)
	destPath, err := pathsafe.UnderRoot(s.avatarDir, filepath.Join(s.avatarDir, destName))
	if err != nil {
		writeError(c, apperr.Wrap(apperr.KindValidation, "avatar path escapes data directory", apperr.ErrPathEscape))
		return
	}

	if err := os.MkdirAll(s.avatarDir, 0o755); err != nil {
		writeError(c, apperr.Internal(err, "create avatar directory"))
		return
	}

	out, err := os.Create(destPath)
	if err != nil {
		writeError(c, apperr.Internal(err, "create avatar file"))
		return
	}
	defer out.Close()

	if _, err := out.Write(header); err != nil {
		writeError(c, apperr.Internal(err, "write avatar file"))
		return
	}
	if _, err := io.Copy(out, upload); err != nil {
		writeError(c, apperr.Internal(err, "write avatar file"))
		return
	}

	artist, err := s.store.ArtistByID(artistID)
	if err != nil {
		writeError(c, apperr.Internal(err, "reload artist"))
		return
	}
	if err := s.store.UpdateArtistEnrichment(artistID, artist.Bio.String, destName, artist.ExternalID.String); err != nil {
		writeError(c, apperr.Internal(err, "persist avatar path"))
		return
	}

	c.JSON(200, gin.H{"avatar": destName})
}
