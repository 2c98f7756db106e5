package controllers

import (
	"io"
	"net/http"
	"time"

	"github.com/osvaldoandrade/classifyq/internal/services"
	"github.com/osvaldoandrade/classifyq/pkg/persistence"

	"github.com/gin-gonic/gin"
)

type resultEventsController struct {
	hub       services.StatusHub
	results   persistence.ResultStorage
	keepAlive time.Duration
}

func NewResultEventsController(hub services.StatusHub, results persistence.ResultStorage) *resultEventsController {
	return &resultEventsController{hub: hub, results: results, keepAlive: 15 * time.Second}
}

// Handle streams "status" events until the result is terminal. A result only
// known to persistence is sent once; an id nobody knows is a 404.
func (h *resultEventsController) Handle(c *gin.Context) {
	id := c.Param("id")
	if _, live := h.hub.Latest(id); !live {
		if h.results == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}
		rec, err := h.results.GetResult(c.Request.Context(), id)
		switch {
		case err == nil:
			c.SSEvent("status", rec)
			return
		case persistence.IsNotFound(err):
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	updates, cancel := h.hub.Subscribe(id)
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case res, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("status", res)
			return !res.State.IsTerminal()
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case <-ctx.Done():
			return false
		}
	})
}
