package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/openlabtz/lims-backend/internal/workflow"
)

// JWTAuth validates a Bearer access token and injects the subject and
// role claims into the request context.  Protected handlers read them
// via c.Get("user_id") (uint64) and c.Get("role") (workflow.Role).
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Missing bearer token."})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Invalid or expired token."})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Invalid token claims."})
			}

			// Numeric claims arrive as float64 after JSON decoding.
			sub, ok := claims["sub"].(float64)
			if !ok || sub <= 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Invalid token claims."})
			}
			role, _ := claims["role"].(string)
			if !workflow.ValidRole(role) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Invalid token claims."})
			}

			c.Set("user_id", uint64(sub))
			c.Set("role", workflow.Role(role))
			return next(c)
		}
	}
}
