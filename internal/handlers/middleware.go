// Copyright 2025 The Learn2Grow Authors
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strings"

	"github.com/learn2grow/server/internal/models"
	"github.com/learn2grow/server/internal/token"
	"github.com/labstack/echo/v4"
)

const adminEmailContextKey = "admin_email"

// RequireAdmin verifies the bearer access token and the admin role before
// letting a request through. The reviewer's email is stored on the echo
// context for the handler.
func RequireAdmin(issuer *token.Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}

			claims, err := issuer.Verify(tokenString, token.PurposeAccess)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			}

			if claims.Role != models.RoleAdmin {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "admin access required"})
			}

			c.Set(adminEmailContextKey, claims.Subject)
			return next(c)
		}
	}
}

// adminEmail returns the authenticated admin's email set by RequireAdmin.
func adminEmail(c echo.Context) string {
	email, _ := c.Get(adminEmailContextKey).(string)
	return email
}
