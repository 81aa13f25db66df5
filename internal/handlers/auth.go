// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/aura/internal/auth"
	"codeberg.org/oliverandrich/aura/internal/i18n"
	"codeberg.org/oliverandrich/aura/internal/middleware"
	"codeberg.org/oliverandrich/aura/internal/models"
	authsvc "codeberg.org/oliverandrich/aura/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for authentication.
type AuthHandlers struct {
	svc *authsvc.Service
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(svc *authsvc.Service) *AuthHandlers {
	return &AuthHandlers{svc: svc}
}

// UserPayload is the public view of an account.
type UserPayload struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"fullName"`
	Avatar        string `json:"avatar"`
	EmailVerified bool   `json:"emailVerified"`
}

// RolePayload names one role of the account.
type RolePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionPayload is returned by register and login.
type SessionPayload struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresIn    int64         `json:"expiresIn"`
	User         UserPayload   `json:"user"`
	Roles        []RolePayload `json:"roles"`
}

// ProfilePayload is returned by /me.
type ProfilePayload struct {
	User  UserPayload   `json:"user"`
	Roles []RolePayload `json:"roles"`
}

func newUserPayload(a *models.Account) UserPayload {
	return UserPayload{
		ID:            a.ID,
		Email:         a.Email,
		FullName:      a.FullName,
		Avatar:        a.AvatarURL(),
		EmailVerified: a.EmailVerified,
	}
}

func newRolePayloads(accountID string, roles []models.Role) []RolePayload {
	out := make([]RolePayload, len(roles))
	for i, r := range roles {
		out[i] = RolePayload{ID: accountID, Name: string(r)}
	}
	return out
}

func newSessionPayload(s *authsvc.Session) SessionPayload {
	return SessionPayload{
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
		ExpiresIn:    s.Tokens.ExpiresIn,
		User:         newUserPayload(s.Account),
		Roles:        newRolePayloads(s.Account.ID, s.Roles),
	}
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"fullName" validate:"omitempty,max=255"`
}

// Register creates a patient account and returns a token pair.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := h.svc.Register(c.Request().Context(), authsvc.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		return err
	}

	return OK(c, http.StatusCreated, newSessionPayload(session))
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates with email and password.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return OK(c, http.StatusOK, newSessionPayload(session))
}

// Logout acknowledges a logout. Tokens are not revoked server-side.
func (h *AuthHandlers) Logout(c echo.Context) error {
	var accountID string
	if raw, err := middleware.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization)); err == nil {
		if claims, err := h.svc.VerifyToken(raw); err == nil {
			accountID = claims.UserID
		}
	}
	h.svc.Logout(c.Request().Context(), accountID)

	return Message(c, "msg_logout_success")
}

// RefreshRequest is the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Refresh issues a new access token.
func (h *AuthHandlers) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return OK(c, http.StatusOK, result)
}

// Verify returns the claims of the bearer token.
func (h *AuthHandlers) Verify(c echo.Context) error {
	claims := auth.GetClaims(c.Request().Context())
	if claims == nil {
		return authsvc.ErrTokenInvalid
	}
	return OK(c, http.StatusOK, claims)
}

// Me returns the authenticated account and its roles.
func (h *AuthHandlers) Me(c echo.Context) error {
	ctx := c.Request().Context()
	account, err := h.svc.Account(ctx, auth.AccountID(ctx))
	if err != nil {
		return err
	}
	roles, err := h.svc.Roles(ctx, account.ID)
	if err != nil {
		return err
	}

	return OK(c, http.StatusOK, ProfilePayload{
		User:  newUserPayload(account),
		Roles: newRolePayloads(account.ID, roles),
	})
}

// SendVerification mails a verification link to the authenticated account.
func (h *AuthHandlers) SendVerification(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.SendVerification(ctx, auth.AccountID(ctx)); err != nil {
		return err
	}
	return Message(c, "msg_verification_sent")
}

// EmailRequest is the request body for flows that only take an email.
type EmailRequest struct {
	Email string `json:"email" validate:"required"`
}

// ResendVerification mails a new verification link without revealing
// whether the email is registered.
func (h *AuthHandlers) ResendVerification(c echo.Context) error {
	var req EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return Message(c, "msg_verification_resent")
}

// VerifyEmailRequest carries the token from the JSON body or ?token=.
type VerifyEmailRequest struct {
	Token string `json:"token" query:"token" validate:"required"`
}

// VerifyEmail redeems an email verification token.
func (h *AuthHandlers) VerifyEmail(c echo.Context) error {
	var req VerifyEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	account, err := h.svc.VerifyEmail(c.Request().Context(), req.Token)
	if err != nil {
		return writeError(c, err, http.StatusBadRequest)
	}

	return c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    newUserPayload(account),
		Message: i18n.T(c.Request().Context(), "msg_email_verified"),
	})
}

// ChangePasswordRequest is the request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// ChangePassword sets a new password for the authenticated account.
func (h *AuthHandlers) ChangePassword(c echo.Context) error {
	var req ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	err := h.svc.ChangePassword(ctx, auth.AccountID(ctx), authsvc.ChangePasswordParams{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return err
	}

	return Message(c, "msg_password_changed")
}

// ForgotPassword mails a reset link without revealing whether the email is
// registered.
func (h *AuthHandlers) ForgotPassword(c echo.Context) error {
	var req EmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return Message(c, "msg_password_reset_requested")
}

// ResetPasswordRequest is the request body for a password reset.
type ResetPasswordRequest struct {
	Email           string `json:"email" validate:"required"`
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// ResetPassword sets a new password for the account behind the email.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	err := h.svc.ResetPassword(c.Request().Context(), authsvc.ResetPasswordParams{
		Email:           req.Email,
		Token:           req.Token,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return writeError(c, err, http.StatusBadRequest)
	}

	return Message(c, "msg_password_reset")
}
