package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentorium/backend/internal/platform/apierr"
)

// envelope is the uniform response shape every endpoint returns.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func respondError(c *gin.Context, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, envelope{Success: false, Error: apiErr.Code, Message: apiErr.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, envelope{Success: false, Error: apierr.CodeInternal, Message: err.Error()})
}
