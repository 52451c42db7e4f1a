package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/cardscan/internal/dto"
)

// APIResponse describes the envelope returned by the capture and session endpoints.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Success sends a successful response using the shared envelope format.
func Success(c echo.Context, status int, message string, data any) error {
	if status == 0 {
		status = http.StatusOK
	}
	payload := APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	}
	return c.JSON(status, payload)
}

// Error sends an {"error": message} body.
func Error(c echo.Context, status int, message string) error {
	return ErrorWith(c, status, dto.ErrorResponse{Error: message})
}

// ErrorWith sends a fully populated error body.
func ErrorWith(c echo.Context, status int, body dto.ErrorResponse) error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, body)
}
