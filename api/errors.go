package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hotelguru/hotelguru/internal/domain"
	"github.com/sirupsen/logrus"
)

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrNoChange):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDateNotReached),
		errors.Is(err, domain.ErrInvalidService),
		errors.Is(err, domain.ErrPolicyDenied):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrBusy):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError maps the domain error taxonomy to HTTP statuses.
// Business-rule violations are returned verbatim; storage failures are
// logged and masked.
func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logrus.WithError(err).Error("request failed")
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
