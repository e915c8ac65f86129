package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gridlabs/grid-api/internal/delegation"
	"github.com/gridlabs/grid-api/internal/logger"
	"github.com/gridlabs/grid-api/internal/registry"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// sendError is a helper function that combines logging and error response
// It logs the error with the given message and sends a JSON error response
func sendError(c *gin.Context, statusCode int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)
	c.JSON(statusCode, ErrorResponse{Error: message})
}

// sendSuccess is a helper function that sends a success response
func sendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// sendSuccessMessage is a helper function that sends a success message
func sendSuccessMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, SuccessResponse{Message: message})
}

// handleOperationError maps delegation operation failures to HTTP codes.
// A malformed entry name is a client mistake; precondition and in-flight
// rejections are conflicts with current state, not server faults.
func handleOperationError(c *gin.Context, err error) {
	var precondition *delegation.PreconditionError
	switch {
	case errors.Is(err, registry.ErrInvalidEntryName):
		sendError(c, http.StatusBadRequest, "Invalid entry name", err)
	case errors.As(err, &precondition):
		sendError(c, http.StatusConflict, precondition.Error(), err)
	case errors.Is(err, delegation.ErrOperationInFlight):
		sendError(c, http.StatusConflict, "Operation already in flight", err)
	default:
		sendError(c, http.StatusInternalServerError, "Operation failed", err)
	}
}
