// Package http contains the gin handlers for the query surface.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shepherdlog/shepherd/internal/domain/broadcast"
	"github.com/shepherdlog/shepherd/internal/domain/query"
	"github.com/shepherdlog/shepherd/internal/domain/store"
	"github.com/shepherdlog/shepherd/internal/shared/types"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	queries *query.Service
	store   *store.Store
	bcast   *broadcast.Broadcaster
}

// NewHandlers creates a new handler set
func NewHandlers(q *query.Service, st *store.Store, b *broadcast.Broadcaster) *Handlers {
	return &Handlers{
		queries: q,
		store:   st,
		bcast:   b,
	}
}

// Root handles basic liveness and counts
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":            "Shepherd Log Pipeline",
		"version":            Version,
		"active_connections": h.bcast.Len(),
		"log_buffer_size":    h.store.Len(),
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"subscribers": h.bcast.Len(),
		"store":       h.queries.Stats(),
	})
}

// GetLogs lists recent records, newest last
func (h *Handlers) GetLogs(c *gin.Context) {
	limit := query.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	c.JSON(http.StatusOK, gin.H{
		"logs": h.queries.Recent(limit),
	})
}

// GetStats reports aggregate counts over retained records
func (h *Handlers) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.queries.Stats())
}

// Acknowledge marks a record as acknowledged
func (h *Handlers) Acknowledge(c *gin.Context) {
	var req types.AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	at := req.Timestamp
	if at == 0 {
		at = float64(time.Now().UnixNano()) / float64(time.Second)
	}

	res := h.queries.Acknowledge(req.LogID, at)
	if res.Status == types.AckNotFound {
		c.JSON(http.StatusOK, gin.H{
			"status":  res.Status,
			"log_id":  res.LogID,
			"message": "Log entry not found",
		})
		return
	}

	c.JSON(http.StatusOK, res)
}
