package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/classifyq/pkg/domain"

	"github.com/gin-gonic/gin"
)

type modelController struct{ metrics domain.ModelMetrics }

func NewModelController(m domain.ModelMetrics) *modelController {
	return &modelController{metrics: m}
}

func (h *modelController) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics)
}
