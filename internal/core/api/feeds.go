// internal/core/api/feeds.go
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/averko/feedmill/internal/core/auth"
	"github.com/averko/feedmill/internal/types"
)

// feedRequest is the write shape for definitions. Blocks stay raw until
// the tagged-union decoder rejects or accepts them as a whole.
type feedRequest struct {
	Name   string          `json:"name" binding:"required"`
	Blocks json.RawMessage `json:"blocks" binding:"required"`
}

// feedResponse is the read shape. Blocks round-trip through the canonical
// encoder so stored definitions always render in wire form.
type feedResponse struct {
	ID        types.FeedID    `json:"id"`
	Name      string          `json:"name"`
	Blocks    json.RawMessage `json:"blocks"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func toFeedResponse(def *types.FeedDefinition) (feedResponse, error) {
	encoded, err := types.EncodeBlocks(def.Blocks)
	if err != nil {
		return feedResponse{}, err
	}
	return feedResponse{
		ID:        def.ID,
		Name:      def.Name,
		Blocks:    encoded,
		CreatedAt: def.CreatedAt,
		UpdatedAt: def.UpdatedAt,
	}, nil
}

func (s *Service) handleCreateFeed(c *gin.Context) {
	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	blocks, err := types.DecodeBlocks(req.Blocks)
	if err != nil {
		s.writeBlockError(c, err)
		return
	}

	owner := auth.UserIDFromContext(c)
	def, err := s.feeds.Create(c.Request.Context(), owner, req.Name, blocks)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp, err := toFeedResponse(def)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Service) handleListFeeds(c *gin.Context) {
	owner := auth.UserIDFromContext(c)
	defs, err := s.feeds.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resps := make([]feedResponse, 0, len(defs))
	for _, def := range defs {
		resp, err := toFeedResponse(def)
		if err != nil {
			s.writeError(c, err)
			return
		}
		resps = append(resps, resp)
	}
	c.JSON(http.StatusOK, gin.H{"feeds": resps})
}

func (s *Service) handleGetFeed(c *gin.Context) {
	id, ok := s.feedID(c)
	if !ok {
		return
	}
	def, err := s.feeds.Get(c.Request.Context(), auth.UserIDFromContext(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	resp, err := toFeedResponse(def)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) handleUpdateFeed(c *gin.Context) {
	id, ok := s.feedID(c)
	if !ok {
		return
	}
	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	blocks, err := types.DecodeBlocks(req.Blocks)
	if err != nil {
		s.writeBlockError(c, err)
		return
	}

	def, err := s.feeds.Update(c.Request.Context(), auth.UserIDFromContext(c), id, req.Name, blocks)
	if err != nil {
		s.writeError(c, err)
		return
	}
	resp, err := toFeedResponse(def)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) handleDeleteFeed(c *gin.Context) {
	id, ok := s.feedID(c)
	if !ok {
		return
	}
	if err := s.feeds.Delete(c.Request.Context(), auth.UserIDFromContext(c), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// feedID parses the :id path parameter, answering 404 for non-UUID input
// so malformed ids and missing feeds are indistinguishable.
func (s *Service) feedID(c *gin.Context) (types.FeedID, bool) {
	id, err := types.ParseFeedID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": types.ErrNotFound.Error()})
		return "", false
	}
	return id, true
}

// writeBlockError maps block-decoding failures: structural JSON problems
// are 400, recognized-but-illegal blocks are the validator's 422.
func (s *Service) writeBlockError(c *gin.Context, err error) {
	if types.IsValidationError(err) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid blocks: " + err.Error()})
}
