package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

// Created writes a 201 for a newly stored case or session.
func Created(c *gin.Context, payload any) {
	JSON(c, http.StatusCreated, payload)
}

// Accepted writes a 202 for a batch that started in the background.
func Accepted(c *gin.Context, payload any) {
	JSON(c, http.StatusAccepted, payload)
}

// ValidationError writes a 400 with the validation_error code.
func ValidationError(c *gin.Context, message string, details any) {
	Error(c, http.StatusBadRequest, "validation_error", message, details)
}

// NotFound writes a 404 with the not_found code.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, "not_found", message, nil)
}

// Precondition writes a 409 for a workflow step attempted out of order.
func Precondition(c *gin.Context, message string) {
	Error(c, http.StatusConflict, "step_precondition", message, nil)
}

// Upstream writes a 502 for a failed model call.
func Upstream(c *gin.Context, message string) {
	Error(c, http.StatusBadGateway, "upstream_error", message, nil)
}

// Internal writes a 500 with the internal_error code.
func Internal(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, "internal_error", message, nil)
}
