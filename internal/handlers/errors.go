// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/learn2grow/server/internal/registration"
	"github.com/labstack/echo/v4"
)

// statusFor maps workflow error kinds to HTTP status codes. This is the
// only place transport codes are decided.
func statusFor(kind registration.Kind) int {
	switch kind {
	case registration.KindValidation,
		registration.KindEmailInUse,
		registration.KindTokenInvalid,
		registration.KindEmailNotVerified:
		return http.StatusBadRequest
	case registration.KindInvalidCredentials:
		return http.StatusUnauthorized
	case registration.KindNotFound:
		return http.StatusNotFound
	case registration.KindAlreadyDecided:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// workflowError writes a JSON error response for a workflow failure.
// Internal errors log the full detail and surface a generic message.
func workflowError(c echo.Context, err error) error {
	kind := registration.KindOf(err)
	if kind == registration.KindInternal {
		slog.Error("workflow_error",
			"path", c.Request().URL.Path,
			"error", err,
		)
	}

	return c.JSON(statusFor(kind), map[string]string{
		"error": registration.MessageOf(err),
	})
}
