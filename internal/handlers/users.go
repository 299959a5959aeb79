// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// RegisterRequest is the request body for sponsor self-registration.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a sponsor account directly, bypassing the recipient
// request flow.
func (h *Handlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	user, err := h.workflow.RegisterSponsor(c.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusCreated, user)
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and returns an access token.
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	accessToken, user, err := h.workflow.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"token": accessToken,
		"user":  user,
	})
}

// RequestRecipient files a new recipient application.
func (h *Handlers) RequestRecipient(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	_, err := h.workflow.SubmitRegistration(c.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"message": "registration received, please check your email to verify your address",
	})
}

// VerifyEmail consumes a verification token from the emailed link and
// redirects to the confirmation page.
func (h *Handlers) VerifyEmail(c echo.Context) error {
	_, err := h.workflow.VerifyEmail(c.Request().Context(), c.QueryParam("token"))
	if err != nil {
		return workflowError(c, err)
	}

	return c.Redirect(http.StatusFound, h.baseURL+"/verified.html")
}

// ListRecipientRequests returns all verified applications for review.
func (h *Handlers) ListRecipientRequests(c echo.Context) error {
	summaries, err := h.workflow.ListRequests(c.Request().Context())
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, summaries)
}

// DecideRequest is the request body for an admin decision.
type DecideRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// DecideRecipientRequest records an admin decision on an application.
func (h *Handlers) DecideRecipientRequest(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request id"})
	}

	var req DecideRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	summary, err := h.workflow.AdminDecide(c.Request().Context(), adminEmail(c), id, req.Status, req.Notes)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, summary)
}

// ForgotPasswordRequest is the request body for starting a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword starts the password reset flow. The response is identical
// whether or not the email is registered.
func (h *Handlers) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.workflow.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "if the address is registered, a reset email has been sent",
	})
}

// ResetPasswordRequest is the request body for completing a password reset.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword consumes a reset token and sets the new password.
func (h *Handlers) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.workflow.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "password updated",
	})
}
