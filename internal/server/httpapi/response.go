package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every error reply. Message is a string, or a
// list of field messages for validation failures.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    any    `json:"message"`
	Error      string `json:"error"`
}

const msgInternal = "Internal server error"

// statusOf maps an error kind to an HTTP status. Internal failures are
// checked first because they may wrap other kinds.
func statusOf(err error) int {
	switch {
	case errors.Is(err, common.ErrorInternal):
		return http.StatusInternalServerError
	case errors.Is(err, common.ErrorValidation),
		errors.Is(err, common.ErrorBadRequest),
		errors.Is(err, common.ErrorConflict):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondError aborts the request with the status and message for err.
// Errors without a client-facing message never expose their text.
func RespondError(c *gin.Context, err error) {
	status := statusOf(err)

	message, ok := common.MessageOf(err)
	if !ok {
		message = http.StatusText(status)
		if status == http.StatusInternalServerError {
			message = msgInternal
		}
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
	})
}

func respondValidation(c *gin.Context, messages []string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		StatusCode: http.StatusBadRequest,
		Message:    messages,
		Error:      http.StatusText(http.StatusBadRequest),
	})
}
