package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kmalykhin/storefront/internal/logging"
	mwauth "github.com/kmalykhin/storefront/internal/middleware/auth"
	"github.com/kmalykhin/storefront/internal/service"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	id, err := uintPathParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	order, err := h.Svc.GetOrder(ctx, id, mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list")

	orders, err := h.Svc.ListOrders(ctx, mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, orders)
}
