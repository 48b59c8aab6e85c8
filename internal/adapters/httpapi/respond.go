package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"custodycore/pkg/domain"
)

// statusFor maps typed service errors to HTTP statuses.
func statusFor(err error) int {
	var (
		validation domain.ValidationError
		notFound   domain.NotFoundError
		duplicate  domain.DuplicateSerialError
		conflict   domain.ConflictError
		violation  domain.RuleViolationError
		external   domain.ExternalServiceError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &duplicate), errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &violation):
		return http.StatusUnprocessableEntity
	case errors.As(err, &external):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ok writes {success: true, message, ...data}.
func ok(c *gin.Context, message string, data gin.H) {
	body := gin.H{"success": true, "message": message}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		message = "Internal server error."
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}
