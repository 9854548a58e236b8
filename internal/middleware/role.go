package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openlabtz/lims-backend/internal/workflow"
)

// RequireRole enforces that the authenticated user holds one of the
// given roles.  It assumes JWTAuth already stored the role in context.
// The denial message names the required role so failed requests match
// the responses of the workflow handlers.
func RequireRole(roles ...workflow.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(workflow.Role)
			if !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "Access denied."})
			}
			if ok, msg := workflow.Allowed(role, roles...); !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": msg})
			}
			return next(c)
		}
	}
}
