package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sitegen-backend/internal/history"
	"sitegen-backend/internal/model"
	"sitegen-backend/internal/provider"
	"sitegen-backend/internal/service"
	"sitegen-backend/internal/settings"
	"sitegen-backend/internal/storage"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, storage.ErrProjectNotFound),
		errors.Is(err, service.ErrNoDocument),
		errors.Is(err, service.ErrProxyDisabled):
		return http.StatusNotFound
	case errors.Is(err, service.ErrGenerationInFlight):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, history.ErrIndexOutOfRange),
		errors.Is(err, provider.ErrUnknownProvider),
		errors.Is(err, service.ErrEmptyPrompt),
		errors.Is(err, service.ErrProxyKeyMissing),
		errors.Is(err, service.ErrMissingCredential),
		errors.Is(err, settings.ErrInvalidTheme),
		errors.Is(err, settings.ErrInvalidProvider),
		errors.Is(err, settings.ErrEmptyCredential):
		return http.StatusBadRequest
	}

	var pe *provider.ProviderError
	if errors.As(err, &pe) {
		return upstreamStatus(pe)
	}
	return http.StatusInternalServerError
}

// upstreamStatus keeps the vendor's status when there is one.
func upstreamStatus(pe *provider.ProviderError) int {
	if pe.Status >= 400 {
		return pe.Status
	}
	switch pe.Kind {
	case model.ErrAuthInvalid:
		return http.StatusUnauthorized
	case model.ErrRateLimited, model.ErrQuotaExceeded:
		return http.StatusTooManyRequests
	case model.ErrContentBlocked:
		return http.StatusBadRequest
	case model.ErrNetworkUnreachable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	var fail *service.Failure
	if errors.As(err, &fail) {
		c.JSON(statusFor(err), gin.H{"error": fail.Message, "kind": fail.Kind})
		return
	}
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// userID is set by the auth collaborator in front of this service.
func userID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}
