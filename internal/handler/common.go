// Package handler contains the HTTP handlers.  All responses share the
// {"success": bool, "message": string, ...} envelope; internal failures
// are logged server-side and answered with a generic message so database
// and broker details never reach clients.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// dbTimeout bounds every handler-initiated database call.
const dbTimeout = 5 * time.Second

func dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// getUserID extracts the authenticated user's id stored by the JWT
// middleware.
func getUserID(c echo.Context) (uint64, error) {
	if v, ok := c.Get("user_id").(uint64); ok && v > 0 {
		return v, nil
	}
	return 0, echo.ErrUnauthorized
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}

// internalError logs the underlying error and returns a redacted 500.
func internalError(c echo.Context, err error) error {
	c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	return fail(c, http.StatusInternalServerError, "Something went wrong. Please try again later.")
}
