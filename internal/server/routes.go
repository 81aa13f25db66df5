// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/aura/internal/handlers"
	"codeberg.org/oliverandrich/aura/internal/middleware"
	authsvc "codeberg.org/oliverandrich/aura/internal/services/auth"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupRoutes(e *echo.Echo, db handlers.Pinger, svc *authsvc.Service) {
	h := handlers.New(db)
	a := handlers.NewAuth(svc)
	bearer := middleware.RequireBearer(svc, handlers.BearerError)

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := e.Group("/api/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout)
	g.POST("/refresh", a.Refresh)
	g.GET("/verify", a.Verify, bearer)
	g.GET("/me", a.Me, bearer)
	g.POST("/send-verification-email", a.SendVerification, bearer)
	g.POST("/resend-verification", a.ResendVerification)
	g.POST("/verify-email", a.VerifyEmail)
	g.GET("/verify-email", a.VerifyEmail)
	g.POST("/change-password", a.ChangePassword, bearer)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)
}
