package api

import (
	"errors"
	"net/http"

	"linkauthority-go/internal/exchange"
	"linkauthority-go/internal/store"
	"linkauthority-go/internal/verification"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors onto HTTP statuses. Anything unmapped is
// logged and hidden behind a generic 500 so internals never leak to clients.
func respondError(c *gin.Context, err error) {
	var fetchErr *verification.FetchError

	switch {
	case errors.Is(err, store.ErrMissingURL),
		errors.Is(err, store.ErrMissingCategory),
		errors.Is(err, store.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrDuplicateURL),
		errors.Is(err, store.ErrNotPending),
		errors.Is(err, store.ErrConcurrentModification),
		errors.Is(err, exchange.ErrBalanceMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrInsufficientPoints):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNoWebsites),
		errors.Is(err, store.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrWebsiteNotFound),
		errors.Is(err, store.ErrTransactionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, verification.ErrProofFailed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &fetchErr):
		// A verification proof that could not be confirmed is the caller's
		// problem to fix, not a server fault.
		body := gin.H{
			"error":     err.Error(),
			"kind":      string(fetchErr.Kind),
			"retryable": fetchErr.Retryable(),
		}
		if fetchErr.Retryable() {
			if fetchErr.Kind == verification.FailureDNS {
				body["hint"] = "DNS records can take a while to propagate, try again in a few minutes"
			} else {
				body["hint"] = "temporary failure, try again shortly"
			}
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	default:
		zap.L().Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
