package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/criteria/internal/middleware"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeUnknownTable  = "UNKNOWN_TABLE"
	CodeInvalidQuery  = "INVALID_QUERY"
	CodeRenderFailed  = "RENDER_FAILED"
	CodePermitFailed  = "PERMIT_UNAVAILABLE"
	CodeInternalError = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// SendErrorWithCode sends a standardized error response with error code and request ID
func SendErrorWithCode(c *fiber.Ctx, statusCode int, errMsg string, code string) error {
	return c.Status(statusCode).JSON(ErrorResponse{
		Error:     errMsg,
		Code:      code,
		RequestID: middleware.GetRequestID(c),
	})
}

// SendErrorWithMessage sends an error response carrying a detail message
func SendErrorWithMessage(c *fiber.Ctx, statusCode int, errMsg, code, message string) error {
	return c.Status(statusCode).JSON(ErrorResponse{
		Error:     errMsg,
		Code:      code,
		Message:   message,
		RequestID: middleware.GetRequestID(c),
	})
}

// errorHandler turns errors escaping the handlers into ErrorResponse JSON
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	if code >= 500 {
		log.Error().Err(err).Str("path", c.Path()).Msg("Server error")
	}

	errCode := CodeInternalError
	if code < 500 {
		errCode = ""
	}

	return SendErrorWithCode(c, code, message, errCode)
}
