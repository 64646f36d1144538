// internal/core/api/pages.go
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/averko/feedmill/internal/core/auth"
	"github.com/averko/feedmill/internal/engine"
	"github.com/averko/feedmill/internal/types"
)

/*
 * Page endpoints compile on every request. Plans are ephemeral: an edited
 * definition takes effect immediately, and in-flight cursors from the old
 * plan fail stale rather than mixing orders mid-scan.
 */

// pageResponse is one page of feed results.
type pageResponse struct {
	Items      []types.Post `json:"items"`
	NextCursor string       `json:"nextCursor,omitempty"`
	HasMore    bool         `json:"hasMore"`
}

// previewRequest runs an ad-hoc block list without persisting it. The
// editor's live preview pane uses this for every change.
type previewRequest struct {
	Blocks   json.RawMessage `json:"blocks" binding:"required"`
	Cursor   string          `json:"cursor"`
	PageSize int             `json:"pageSize"`
}

func (s *Service) handleFeedPage(c *gin.Context) {
	id, ok := s.feedID(c)
	if !ok {
		return
	}
	viewer := auth.UserIDFromContext(c)

	def, err := s.feeds.Get(c.Request.Context(), viewer, id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	pageSize := 0
	if raw := c.Query("page_size"); raw != "" {
		pageSize, err = strconv.Atoi(raw)
		if err != nil || pageSize < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be a positive integer"})
			return
		}
	}

	s.servePage(c, def.Blocks, viewer, c.Query("cursor"), pageSize)
}

func (s *Service) handlePreview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	blocks, err := types.DecodeBlocks(req.Blocks)
	if err != nil {
		s.writeBlockError(c, err)
		return
	}
	if req.PageSize < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pageSize must not be negative"})
		return
	}

	s.servePage(c, blocks, auth.UserIDFromContext(c), req.Cursor, req.PageSize)
}

// servePage runs the validate-compile-paginate sequence shared by the
// stored-feed and preview paths.
func (s *Service) servePage(c *gin.Context, blocks []types.Block, viewer types.UserID, cursor string, pageSize int) {
	pipeline, err := engine.Validate(blocks)
	if err != nil {
		s.writeError(c, err)
		return
	}
	plan, err := engine.Compile(pipeline, viewer)
	if err != nil {
		s.writeError(c, err)
		return
	}

	page, err := s.paginator.Paginate(c.Request.Context(), plan, cursor, pageSize)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := pageResponse{
		Items:      make([]types.Post, 0, len(page.Items)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for _, item := range page.Items {
		resp.Items = append(resp.Items, item.Post)
	}
	c.JSON(http.StatusOK, resp)
}
