// Package handlers provides HTTP handler implementations for the webhook API.
//
// This file defines the standard response envelopes. The webhook caller (the
// Telegram platform) only inspects the HTTP status, but every response still
// carries an explicit machine-readable status field so operators and tests
// never see a bare exception or an empty body.
//
// Conventions:
//   - Success: {"status":"ok"} or {"status":"ok","message":"<info>"} for
//     filtered no-op cases.
//   - Failure: {"status":"error","message":"<description>"} with 400 for
//     malformed input, 401 for a bad webhook secret, 500 otherwise.
//   - fail() centralizes error logging so 5xx responses always reach the
//     request-scoped logger.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-telegram-bridge/internal/http/middleware"
)

// StatusResponse is the success envelope.
type StatusResponse struct {
	// Status is always "ok".
	Status string `json:"status"`
	// Message carries the informational reason for no-op responses.
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	// RequestID correlates server logs and client errors.
	RequestID string `json:"request_id,omitempty"`
	// Status is always "error".
	Status string `json:"status"`
	// Message is a human-readable description, safe to surface in logs.
	Message string `json:"message"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Status:    "error",
		Message:   msg,
	}

	// Log 5xx (server-side) with request-scoped logger
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(). Router fallbacks use it to return
// consistent envelopes without depending on unexported helpers.
func Fail(c *gin.Context, status int, msg string) { fail(c, status, msg) }

// okStatus writes the success envelope, with an optional informational
// message for filtered no-op cases.
func okStatus(c *gin.Context, info string) {
	c.JSON(http.StatusOK, StatusResponse{Status: "ok", Message: info})
}
