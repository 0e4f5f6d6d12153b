package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kmalykhin/storefront/internal/logging"
	"github.com/kmalykhin/storefront/internal/service"
	"github.com/kmalykhin/storefront/internal/tokens"
)

type Middleware struct {
	JWTSecret []byte
}

// RequireLogin accepts the access token from the Authorization header or
// the accessToken cookie and puts the resolved actor on the echo context.
func (m *Middleware) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := tokens.AccessClaimsFromToken(raw, m.JWTSecret)
		if err != nil {
			if err == tokens.ErrMalformed {
				logging.FromContext(c.Request().Context()).
					Warn("suspicious_token_format", "ip", c.RealIP())
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		userID, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil || userID == 0 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid subject claim")
		}

		c.Set("actor", service.Actor{UserID: uint(userID), Role: claims.Role})
		return next(c)
	}
}

// RequireAdmin stacks on RequireLogin.
func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireLogin(func(c echo.Context) error {
		actor := ActorFromContext(c)
		if !actor.IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "admin only")
		}
		return next(c)
	})
}

func ActorFromContext(c echo.Context) service.Actor {
	if a, ok := c.Get("actor").(service.Actor); ok {
		return a
	}
	return service.Actor{}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie("accessToken"); err == nil {
		return cookie.Value
	}
	return ""
}
