package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"agentdocs/internal/apperr"
)

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func statusFor(err error) int {
	if abandoned(err) {
		return http.StatusServiceUnavailable
	}
	switch apperr.KindOf(err) {
	case apperr.InvalidArgument:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.Unavailable:
		return http.StatusServiceUnavailable
	case apperr.ProviderFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	switch {
	case abandoned(err):
		h.logger.Debug("request abandoned", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	case status >= http.StatusInternalServerError:
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": apperr.PublicMessage(err)})
}

// abandoned reports errors caused by the request's own context ending.
func abandoned(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (h *Handler) bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.logger.Debug("bind request body", "path", c.FullPath(), "error", err)
		h.fail(c, apperr.Invalid("invalid request body"))
		return false
	}
	return true
}
