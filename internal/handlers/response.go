// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/aura/internal/i18n"
	"codeberg.org/oliverandrich/aura/internal/middleware"
	authsvc "codeberg.org/oliverandrich/aura/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// Response is the JSON envelope of every API response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK writes a successful envelope carrying data.
func OK(c echo.Context, status int, data any) error {
	return c.JSON(status, Response{Success: true, Data: data})
}

// Message writes a successful envelope carrying a localized message.
func Message(c echo.Context, messageID string) error {
	return c.JSON(http.StatusOK, Response{
		Success: true,
		Message: i18n.T(c.Request().Context(), messageID),
	})
}

// Fail writes an error envelope.
func Fail(c echo.Context, status int, messageID, detail string) error {
	return c.JSON(status, Response{
		Success: false,
		Error:   i18n.T(c.Request().Context(), messageID),
		Message: detail,
	})
}

// BearerError renders a failure of the bearer middleware.
func BearerError(c echo.Context, err error) error {
	return writeError(c, err, http.StatusUnauthorized)
}

// ErrorHandler renders errors that reach echo as JSON envelopes.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if writeErr := writeError(c, err, http.StatusUnauthorized); writeErr != nil {
		slog.Error("failed to write error response", "error", writeErr)
	}
}

// writeError maps err to a status and message. tokenStatus is used for token
// errors, which are 401 on bearer flows and 400 on link redemption.
func writeError(c echo.Context, err error, tokenStatus int) error {
	status, messageID, detail := classify(err, tokenStatus)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
	}
	if c.Request().Method == http.MethodHead {
		return c.NoContent(status)
	}
	return Fail(c, status, messageID, detail)
}

func classify(err error, tokenStatus int) (int, string, string) {
	var httpErr *echo.HTTPError
	switch {
	case errors.Is(err, authsvc.ErrValidation):
		return http.StatusBadRequest, "err_validation", validationDetail(err)
	case errors.Is(err, authsvc.ErrDuplicateEmail):
		return http.StatusBadRequest, "err_duplicate_email", ""
	case errors.Is(err, authsvc.ErrAlreadyVerified):
		return http.StatusBadRequest, "err_already_verified", ""
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		return http.StatusUnauthorized, "err_invalid_credentials", ""
	case errors.Is(err, authsvc.ErrTokenExpired):
		return tokenStatus, "err_token_expired", ""
	case errors.Is(err, authsvc.ErrTokenInvalid):
		return tokenStatus, "err_token_invalid", ""
	case errors.Is(err, authsvc.ErrTokenAlreadyUsed):
		return tokenStatus, "err_token_used", ""
	case errors.Is(err, authsvc.ErrAccountNotFound):
		return http.StatusNotFound, "err_account_not_found", ""
	case errors.Is(err, authsvc.ErrEmailDeliveryFailed):
		return http.StatusInternalServerError, "err_email_delivery", ""
	case errors.Is(err, middleware.ErrMissingToken):
		return http.StatusUnauthorized, "err_token_missing", ""
	case errors.Is(err, middleware.ErrMalformedHeader):
		return http.StatusBadRequest, "err_token_malformed", ""
	case errors.As(err, &httpErr):
		return classifyHTTP(httpErr)
	default:
		return http.StatusInternalServerError, "err_internal", ""
	}
}

func classifyHTTP(err *echo.HTTPError) (int, string, string) {
	switch err.Code {
	case http.StatusNotFound:
		return err.Code, "err_not_found", ""
	case http.StatusMethodNotAllowed:
		return err.Code, "err_method_not_allowed", ""
	case http.StatusRequestEntityTooLarge:
		return err.Code, "err_payload_too_large", ""
	case http.StatusBadRequest, http.StatusUnsupportedMediaType:
		return http.StatusBadRequest, "err_validation", ""
	case http.StatusUnauthorized:
		return err.Code, "err_token_invalid", ""
	}
	if err.Code >= http.StatusInternalServerError {
		return err.Code, "err_internal", ""
	}
	return err.Code, "err_validation", ""
}

func validationDetail(err error) string {
	var pwErr *authsvc.PasswordValidationError
	if errors.As(err, &pwErr) {
		return strings.Join(pwErr.Messages(), " ")
	}
	var fieldErr *authsvc.FieldError
	if errors.As(err, &fieldErr) {
		return fieldErr.Message
	}
	return ""
}
