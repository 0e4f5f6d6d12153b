package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kmalykhin/storefront/internal/logging"
	"github.com/kmalykhin/storefront/internal/models"
	"github.com/kmalykhin/storefront/internal/service"
)

type CouponHTTP struct {
	Svc *service.CouponService
}

func (h *CouponHTTP) CreateCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.create")

	var req CouponRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_coupon_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	coupon := models.Coupon{
		Code:            req.Code,
		DiscountPercent: req.DiscountPercent,
		IsActive:        true,
		ExpiresAt:       req.ExpiresAt,
		UsageLimit:      req.UsageLimit,
	}
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}
	if err := h.Svc.CreateCoupon(ctx, &coupon); err != nil {
		return respondError(c, l, "create_coupon_error", err)
	}
	return c.JSON(http.StatusCreated, coupon)
}

func (h *CouponHTTP) ListCoupons(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.list")

	coupons, err := h.Svc.ListCoupons(ctx)
	if err != nil {
		return respondError(c, l, "list_coupons_error", err)
	}
	return c.JSON(http.StatusOK, coupons)
}

func (h *CouponHTTP) DeleteCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.delete")

	id, err := uintPathParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Svc.DeleteCoupon(ctx, id); err != nil {
		return respondError(c, l, "delete_coupon_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}
