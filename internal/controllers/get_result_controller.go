package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/classifyq/internal/services"
	"github.com/osvaldoandrade/classifyq/pkg/persistence"

	"github.com/gin-gonic/gin"
)

type getResultController struct {
	hub     services.StatusHub
	results persistence.ResultStorage
}

func NewGetResultController(hub services.StatusHub, results persistence.ResultStorage) *getResultController {
	return &getResultController{hub: hub, results: results}
}

// Handle prefers the live snapshot and falls back to the persisted record.
func (h *getResultController) Handle(c *gin.Context) {
	id := c.Param("id")
	if res, ok := h.hub.Latest(id); ok {
		c.JSON(http.StatusOK, res)
		return
	}
	if h.results != nil {
		res, err := h.results.GetResult(c.Request.Context(), id)
		if err == nil {
			c.JSON(http.StatusOK, res)
			return
		}
		if !persistence.IsNotFound(err) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
}
