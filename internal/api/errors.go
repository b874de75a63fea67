package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pbaille/notemarket/internal/domain"
)

// statusFor maps the domain error taxonomy onto HTTP status codes
func statusFor(err error) int {
	var (
		invalid  *domain.InvalidScoreError
		action   *domain.ActionError
		message  *domain.MessageError
		lookup   *domain.LookupError
		conflict *domain.ConflictError
	)
	switch {
	case errors.As(err, &message):
		switch {
		case message.Err == nil:
			return http.StatusBadRequest
		case errors.Is(message.Err, domain.ErrNotFound):
			return http.StatusNotFound
		case errors.As(message.Err, &action):
			return http.StatusForbidden
		default:
			return http.StatusBadGateway
		}
	case errors.As(err, &lookup):
		if errors.Is(lookup.Err, domain.ErrNotFound) {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case errors.As(err, &action):
		switch action.Reason {
		case domain.ReasonNotOwner:
			return http.StatusForbidden
		case domain.ReasonUnknownAction, domain.ReasonBadDecision:
			return http.StatusBadRequest
		default:
			return http.StatusConflict
		}
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}
