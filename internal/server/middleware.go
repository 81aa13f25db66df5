// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"

	"codeberg.org/oliverandrich/aura/internal/config"
	"codeberg.org/oliverandrich/aura/internal/middleware"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

func setupMiddleware(e *echo.Echo, cfg *config.Config) {
	e.Pre(echomw.RemoveTrailingSlash())

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestIDToContext())
	e.Use(middleware.Metrics())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Secure())
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dM", maxBodySize(cfg))))
	e.Use(corsMiddleware(cfg))
	e.Use(middleware.Locale())
}

func corsMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderAcceptEncoding,
			"Accept-Language",
		},
		AllowCredentials: true,
		MaxAge:           3600,
	})
}

func maxBodySize(cfg *config.Config) int {
	if cfg.Server.MaxBodySize <= 0 {
		return 1
	}
	return cfg.Server.MaxBodySize
}
