package api

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		errorCode    string
		message      string
	}{
		{
			name:         "fiber client error",
			err:          fiber.NewError(fiber.StatusBadRequest, "bad input"),
			expectedCode: fiber.StatusBadRequest,
			message:      "bad input",
		},
		{
			name:         "fiber server error",
			err:          fiber.ErrServiceUnavailable,
			expectedCode: fiber.StatusServiceUnavailable,
			errorCode:    CodeInternalError,
			message:      "Service Unavailable",
		},
		{
			name:         "plain error",
			err:          errors.New("boom"),
			expectedCode: fiber.StatusInternalServerError,
			errorCode:    CodeInternalError,
			message:      "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.expectedCode, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.message, body.Error)
			assert.Equal(t, tt.errorCode, body.Code)
		})
	}
}

func TestSendErrorWithMessage(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return SendErrorWithMessage(c, fiber.StatusBadRequest, "Invalid query string", CodeInvalidQuery, "detail")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, ErrorResponse{Error: "Invalid query string", Code: CodeInvalidQuery, Message: "detail"}, body)
}
