package api

import (
	"errors"
	"net/http"

	"dinein-service/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// statusOf maps an error kind to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.NotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.Validation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.InvalidState), errors.Is(err, apperr.ConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.UpstreamFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	code := apperr.CodeOf(err)
	message := err.Error()

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("code", code),
			zap.Error(err))
		var coded *apperr.Error
		if errors.As(err, &coded) {
			message = coded.Message
		} else {
			message = "service temporarily unavailable"
		}
	}

	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"code":    code,
		"message": message,
	})
}

// badRequest reports a request that failed binding.
func (h *Handler) badRequest(c *gin.Context, err error) {
	h.fail(c, apperr.Wrap(apperr.ErrInvalidInput, "%s", err.Error()))
}
