package handlers

import (
	"errors"
	"net/http"

	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"github.com/gin-gonic/gin"
)

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrorValidation):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrorInsufficientStock),
		errors.Is(err, utils.ErrorInvalidStatusTransition),
		errors.Is(err, utils.ErrorLocationMismatch),
		errors.Is(err, utils.ErrorExcessReceipt),
		errors.Is(err, utils.ErrorConflictRetry):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	if status == http.StatusInternalServerError {
		// never leak driver internals
		body = gin.H{"error": "internal server error"}
	}
	c.JSON(status, body)
}
