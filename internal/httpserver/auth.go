package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	mwauth "github.com/kmalykhin/storefront/internal/middleware/auth"
	"github.com/kmalykhin/storefront/internal/logging"
	"github.com/kmalykhin/storefront/internal/service"
	"github.com/kmalykhin/storefront/internal/tokens"
)

type AuthHTTP struct {
	Svc       *service.AuthService
	JWTSecret []byte
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	user, err := h.Svc.Register(ctx, req.Email, req.Username, req.Password, req.FirstName, req.LastName, clientInfo(c))
	if err != nil {
		return respondError(c, l, "register_error", err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	pair, err := h.Svc.Login(ctx, req.Identifier, req.Password, clientInfo(c))
	if err != nil {
		return respondError(c, l, "login_error", err)
	}

	c.SetCookie(createCookie("accessToken", pair.AccessToken, "/", pair.AccessExp))
	c.SetCookie(createCookie("refreshToken", pair.RefreshToken, "/", pair.RefreshExp))
	return c.JSON(http.StatusOK, TokenPairResponse(*pair))
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("refresh_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.AccessToken == "" {
		if cookie, err := c.Cookie("accessToken"); err == nil {
			req.AccessToken = cookie.Value
		}
	}
	if req.RefreshToken == "" {
		if cookie, err := c.Cookie("refreshToken"); err == nil {
			req.RefreshToken = cookie.Value
		}
	}

	pair, err := h.Svc.Refresh(ctx, req.AccessToken, req.RefreshToken, clientInfo(c))
	if err != nil {
		return respondError(c, l, "refresh_error", err)
	}

	c.SetCookie(createCookie("accessToken", pair.AccessToken, "/", pair.AccessExp))
	c.SetCookie(createCookie("refreshToken", pair.RefreshToken, "/", pair.RefreshExp))
	return c.JSON(http.StatusOK, TokenPairResponse(*pair))
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	actor := mwauth.ActorFromContext(c)
	if err := h.Svc.RevokeAll(ctx, actor.UserID, clientInfo(c)); err != nil {
		return respondError(c, l, "logout_error", err)
	}

	c.SetCookie(deleteCookie("accessToken", "/"))
	c.SetCookie(deleteCookie("refreshToken", "/"))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Revoke kills every session for the caller. The user is taken from the
// authenticated context when present, otherwise from a token in the body;
// expired tokens are accepted since the point is to invalidate them.
func (h *AuthHTTP) Revoke(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.revoke")

	actor := mwauth.ActorFromContext(c)
	userID := actor.UserID
	if userID == 0 {
		var req RevokeRequest
		if err := c.Bind(&req); err != nil || req.AccessToken == "" {
			l.Warn("revoke_error", "status", 401)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		claims, err := tokens.AccessClaimsIgnoringExpiry(req.AccessToken, h.JWTSecret)
		if err != nil {
			l.Warn("revoke_error", "status", 401, "error", err)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		id, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil || id == 0 {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		userID = uint(id)
	}

	if err := h.Svc.RevokeAll(ctx, userID, clientInfo(c)); err != nil {
		return respondError(c, l, "revoke_error", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "sessions revoked"})
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.change_password")

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("change_password_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	actor := mwauth.ActorFromContext(c)
	if err := h.Svc.ChangePassword(ctx, actor.UserID, req.CurrentPassword, req.NewPassword, clientInfo(c)); err != nil {
		return respondError(c, l, "change_password_error", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

// ForgotPassword always answers 200 with the same message so the endpoint
// cannot be used to probe which emails are registered.
func (h *AuthHTTP) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.forgot_password")

	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("forgot_password_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	if err := h.Svc.ForgotPassword(ctx, req.Email, clientInfo(c)); err != nil {
		l.Error("forgot_password_error", "error", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "if the account exists, a reset code has been sent"})
}

func (h *AuthHTTP) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.reset_password")

	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("reset_password_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	pair, err := h.Svc.ResetPassword(ctx, req.Token, req.NewPassword, clientInfo(c))
	if err != nil {
		return respondError(c, l, "reset_password_error", err)
	}

	c.SetCookie(createCookie("accessToken", pair.AccessToken, "/", pair.AccessExp))
	c.SetCookie(createCookie("refreshToken", pair.RefreshToken, "/", pair.RefreshExp))
	return c.JSON(http.StatusOK, TokenPairResponse(*pair))
}
