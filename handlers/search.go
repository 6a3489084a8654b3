package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/devicelocksmith/Tidal-Media-Downloader/catalog"
)

// SearchHandler handles search endpoints
type SearchHandler struct {
	catalog catalog.Client
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(client catalog.Client) *SearchHandler {
	return &SearchHandler{catalog: client}
}

// Search performs a catalog track search
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "query parameter 'q' is required",
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	results, err := h.catalog.SearchTracks(c.Request.Context(), query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "search failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"results": results,
	})
}
