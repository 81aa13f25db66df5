// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/aura/internal/config"
	"codeberg.org/oliverandrich/aura/internal/handlers"
	"codeberg.org/oliverandrich/aura/internal/i18n"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiddlewareEcho(t *testing.T, cfg *config.Config) *echo.Echo {
	t.Helper()
	require.NoError(t, i18n.Init())
	e := echo.New()
	handlers.Configure(e)
	setupMiddleware(e, cfg)
	return e
}

func TestMiddleware_TrailingSlashIsRewritten(t *testing.T) {
	e := newMiddlewareEcho(t, testConfig())
	e.POST("/api/auth/login", func(c echo.Context) error {
		return c.String(http.StatusOK, "login")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "login", rec.Body.String())
}

func TestMiddleware_RequestID(t *testing.T) {
	e := newMiddlewareEcho(t, testConfig())
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Response().Header().Get(echo.HeaderXRequestID))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	id := rec.Header().Get(echo.HeaderXRequestID)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, rec.Body.String())
}

func TestMiddleware_SecureHeaders(t *testing.T) {
	e := newMiddlewareEcho(t, testConfig())
	e.GET("/", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get(echo.HeaderXFrameOptions))
}

func TestMiddleware_CORS(t *testing.T) {
	e := newMiddlewareEcho(t, testConfig())
	e.POST("/api/auth/login", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	t.Run("allowed origin preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
		req.Header.Set(echo.HeaderOrigin, "http://localhost:5173")
		req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:5173", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowHeaders), echo.HeaderAuthorization)
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.Header.Set(echo.HeaderOrigin, "https://evil.example")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	})
}

func TestMiddleware_BodyLimit(t *testing.T) {
	e := newMiddlewareEcho(t, testConfig())
	e.POST("/upload", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("a", 2<<20)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "Request body too large")
}

func TestMiddleware_RecoverRendersEnvelope(t *testing.T) {
	e := newMiddlewareEcho(t, testConfig())
	e.GET("/panic", func(c echo.Context) error {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestMiddleware_Locale(t *testing.T) {
	e := newMiddlewareEcho(t, testConfig())
	e.GET("/hello", func(c echo.Context) error {
		return c.String(http.StatusOK, i18n.T(c.Request().Context(), "err_token_missing"))
	})

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.Header.Set("Accept-Language", "vi-VN,vi;q=0.9")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "Token not provided", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.Header.Set("Accept-Language", "de-DE")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "Token not provided", rec.Body.String())
}

func TestMaxBodySize(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, 1, maxBodySize(cfg))

	cfg.Server.MaxBodySize = 0
	assert.Equal(t, 1, maxBodySize(cfg))

	cfg.Server.MaxBodySize = 4
	assert.Equal(t, 4, maxBodySize(cfg))
}
