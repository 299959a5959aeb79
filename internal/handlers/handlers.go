// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

// Package handlers maps HTTP requests onto workflow calls. Handlers stay
// thin: bind, call, translate the error kind.
package handlers

import (
	"net/http"

	"github.com/learn2grow/server/internal/registration"
	"github.com/labstack/echo/v4"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	workflow *registration.Workflow
	baseURL  string
}

// New creates a new Handlers instance.
func New(workflow *registration.Workflow, baseURL string) *Handlers {
	return &Handlers{workflow: workflow, baseURL: baseURL}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
