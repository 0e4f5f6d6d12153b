package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kmalykhin/storefront/internal/logging"
	mwauth "github.com/kmalykhin/storefront/internal/middleware/auth"
	"github.com/kmalykhin/storefront/internal/service"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	cartID, err := uintQueryParam(c, "id")
	if err != nil {
		l.Warn("get_cart_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cart id"})
	}

	cart, err := h.Svc.GetCart(ctx, cartID, mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "get_cart_error", err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	var req AddItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_item_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	cart, err := h.Svc.AddItem(ctx, req.CartID, req.ProductID, req.Quantity, mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "add_item_error", err)
	}
	return c.JSON(http.StatusCreated, cart)
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_item")

	cartID, err := uintQueryParam(c, "cartId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cartId"})
	}
	productID, err := uintQueryParam(c, "productId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid productId"})
	}

	var req UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_item_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	cart, err := h.Svc.UpdateItemQuantity(ctx, cartID, productID, req.Quantity, mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "update_item_error", err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	cartID, err := uintQueryParam(c, "cartId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cartId"})
	}
	productID, err := uintQueryParam(c, "productId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid productId"})
	}

	cart, err := h.Svc.RemoveItem(ctx, cartID, productID, mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "remove_item_error", err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) ApplyCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.apply_coupon")

	cartID, err := uintQueryParam(c, "cartId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cartId"})
	}

	var req ApplyCouponRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("apply_coupon_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	cart, err := h.Svc.ApplyCoupon(ctx, cartID, req.Code, mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "apply_coupon_error", err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.checkout")

	cartID, err := uintQueryParam(c, "cartId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cartId"})
	}

	order, err := h.Svc.Checkout(ctx, cartID, mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "checkout_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func uintQueryParam(c echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.QueryParam(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}
