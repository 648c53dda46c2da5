package server

import (
	"errors"
	"net/http"

	"github.com/docuspace/docuspace/internal/access"
	invitationdomain "github.com/docuspace/docuspace/internal/invitation/domain"
	userdomain "github.com/docuspace/docuspace/internal/user/domain"
	workspacedomain "github.com/docuspace/docuspace/internal/workspace/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
)

// ErrorHandlingMiddleware translates domain errors pushed onto the gin error
// stack into a uniform JSON error envelope.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}

	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}

	case errors.Is(err, workspacedomain.ErrForbidden),
		errors.Is(err, invitationdomain.ErrForbidden),
		errors.Is(err, invitationdomain.ErrEmailMismatch),
		errors.Is(err, access.ErrDenied):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}

	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}

	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}

	case errors.Is(err, invitationdomain.ErrExpired):
		return http.StatusGone, errorPayload{
			Type:    "expired",
			Message: "invitation expired",
		}

	case errors.Is(err, workspacedomain.ErrOwnerImmutable),
		errors.Is(err, invitationdomain.ErrNotPending),
		errors.Is(err, invitationdomain.ErrRegistrationRequired):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "invalid_state",
			Message: err.Error(),
		}

	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, workspacedomain.ErrInvalidName),
		errors.Is(err, workspacedomain.ErrInvalidWorkspace),
		errors.Is(err, workspacedomain.ErrInvalidUser),
		errors.Is(err, workspacedomain.ErrInvalidRole),
		errors.Is(err, workspacedomain.ErrInvalidPermissions),
		errors.Is(err, invitationdomain.ErrInvalidEmail),
		errors.Is(err, invitationdomain.ErrInvalidInvitation):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, workspacedomain.ErrNotFound),
		errors.Is(err, workspacedomain.ErrMemberNotFound),
		errors.Is(err, invitationdomain.ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, workspacedomain.ErrNameTaken),
		errors.Is(err, workspacedomain.ErrNotEmpty),
		errors.Is(err, invitationdomain.ErrAlreadyMember),
		errors.Is(err, invitationdomain.ErrDuplicate):
		return true
	default:
		return false
	}
}
