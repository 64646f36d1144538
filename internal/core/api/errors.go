// internal/core/api/errors.go
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/averko/feedmill/internal/types"
)

/*
 * HTTP error mapping for the engine's failure taxonomy:
 *   validation errors    -> 422, message verbatim (the editor needs it)
 *   cursor errors        -> 410, client restarts from page one
 *   not found            -> 404
 *   not owner            -> 403
 *   store execution      -> 503, client may retry with backoff
 *   unvalidated pipeline -> 500, broken server invariant
 */

// writeError maps a domain error onto an HTTP response.
func (s *Service) writeError(c *gin.Context, err error) {
	switch {
	case types.IsValidationError(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case types.IsCursorError(err):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})

	case errors.Is(err, types.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, types.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, types.ErrExecution):
		s.log.Error("post store failure", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "post store unavailable, retry later"})

	case errors.Is(err, types.ErrUnvalidatedPipeline):
		s.log.Error("compile invariant violation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})

	default:
		s.log.Error("unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
