package stream

import (
	"github.com/gin-gonic/gin"

	"github.com/franz/sonora/internal/apperr"
)

// writeError maps a taxonomy error to the universal JSON error body
// from spec.md §6 and writes the matching status code.
func writeError(c *gin.Context, err error) {
	status, body := apperr.Respond(err)
	c.JSON(status, body)
}
