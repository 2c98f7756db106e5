package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/osvaldoandrade/classifyq/internal/middleware"
	"github.com/osvaldoandrade/classifyq/internal/services"
	"github.com/osvaldoandrade/classifyq/pkg/domain"

	"github.com/gin-gonic/gin"
)

type submitImageController struct {
	svc      services.SubmissionService
	maxBytes int64
}

func NewSubmitImageController(svc services.SubmissionService, maxBytes int64) *submitImageController {
	return &submitImageController{svc: svc, maxBytes: maxBytes}
}

func (h *submitImageController) Handle(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", h.maxBytes)})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	img := domain.Image{Name: fh.Filename, ContentType: contentType, Data: data}

	wait, _ := strconv.ParseBool(c.Query("wait"))
	if !wait {
		first, err := h.svc.Start(c.Request.Context(), img)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		tagResult(c, &first)
		c.Header("Location", "/v1/classify/results/"+first.ID)
		c.JSON(http.StatusAccepted, first)
		return
	}

	res, err := h.svc.Submit(c.Request.Context(), img, nil)
	if res != nil {
		tagResult(c, res)
	}
	if err != nil {
		var terr *domain.TransportError
		if errors.As(err, &terr) && res != nil {
			c.JSON(http.StatusBadGateway, res)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func tagResult(c *gin.Context, res *domain.Result) {
	c.Set(middleware.ResultIDKey, res.ID)
	c.Set(middleware.ResultStateKey, string(res.State))
}
