package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/classifyq/internal/services"

	"github.com/gin-gonic/gin"
)

type historyController struct{ svc services.HistoryService }

func NewHistoryController(svc services.HistoryService) *historyController {
	return &historyController{svc: svc}
}

func (h *historyController) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.LoadAll(c.Request.Context()))
}
