package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
	apperrors "github.com/shopline-platform/reconciliation-service/pkg/errors"
)

// respondError maps domain and application errors onto HTTP responses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidChannel),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidCode),
		errors.Is(err, domain.ErrNotSmallBatch),
		errors.Is(err, domain.ErrNotListed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
	}
}
