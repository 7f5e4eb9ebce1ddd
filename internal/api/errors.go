package api

import (
	"errors"
	"net/http"

	"storefront/internal/commerce"
	"storefront/internal/payment"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidOrder),
		errors.Is(err, service.ErrInvalidPayment),
		errors.Is(err, service.ErrInvalidQuery),
		errors.Is(err, payment.ErrInvalidCurrency):
		return http.StatusBadRequest
	case errors.Is(err, commerce.ErrNotFound),
		errors.Is(err, payment.ErrIntentNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPaymentRequired),
		errors.Is(err, service.ErrPaymentMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error", "details"}; upstream failures are logged with
// their message.
func (h *Handler) respondError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message,
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
