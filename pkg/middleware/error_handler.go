package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/shopline-platform/reconciliation-service/pkg/errors"
)

// APIErrorResponse is the standard error payload for API responses
type APIErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
	Timestamp string            `json:"timestamp"`
	Path      string            `json:"path"`
}

// ErrorHandler converts errors attached to the gin context into API responses
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		requestID, _ := c.Get(ContextKeyRequestID)
		reqID, _ := requestID.(string)

		resp := APIErrorResponse{
			Code:      apperrors.CodeInternalError,
			Message:   "An unexpected error occurred",
			RequestID: reqID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Path:      c.Request.URL.Path,
		}
		status := http.StatusInternalServerError

		if appErr, ok := apperrors.AsAppError(err); ok {
			resp.Code = appErr.Code
			resp.Message = appErr.Message
			resp.Details = appErr.Details
			status = appErr.HTTPStatus
		}

		if status >= 500 {
			logger.Error("Request failed", "error", err.Error(), "path", c.Request.URL.Path, "requestId", reqID)
		}

		if !c.Writer.Written() {
			c.JSON(status, resp)
		}
	}
}
