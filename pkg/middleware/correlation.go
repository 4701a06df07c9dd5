package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shopline-platform/reconciliation-service/pkg/logging"
)

const (
	// ContextKeyRequestID is the gin context key for the request id
	ContextKeyRequestID = "requestId"
	// ContextKeyCorrelationID is the gin context key for the correlation id
	ContextKeyCorrelationID = "correlationId"

	// HeaderRequestID is the request id header
	HeaderRequestID = "X-Request-ID"
	// HeaderCorrelationID is the correlation id header
	HeaderCorrelationID = "X-Correlation-ID"
)

// RequestID assigns a request id to each request, honoring an inbound header
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(ContextKeyRequestID, requestID)
		c.Header(HeaderRequestID, requestID)

		ctx := logging.ContextWithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// CorrelationID propagates (or assigns) a correlation id across service calls
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(ContextKeyCorrelationID, correlationID)
		c.Header(HeaderCorrelationID, correlationID)

		ctx := logging.ContextWithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
