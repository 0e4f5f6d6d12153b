package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kmalykhin/storefront/internal/logging"
	mwauth "github.com/kmalykhin/storefront/internal/middleware/auth"
	"github.com/kmalykhin/storefront/internal/service"
	"github.com/kmalykhin/storefront/internal/util"
)

type ReviewHTTP struct {
	Svc *service.ReviewService
}

func (h *ReviewHTTP) AddReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "review.add")

	productID, err := uintPathParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}

	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_review_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	review, err := h.Svc.AddReview(ctx, productID, req.Rating, req.Comment, mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "add_review_error", err)
	}
	return c.JSON(http.StatusCreated, review)
}

func (h *ReviewHTTP) ListReviews(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "review.list")

	productID, err := uintPathParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, limit := util.Calculate(page, size)

	reviews, total, err := h.Svc.ListReviews(ctx, productID, from, limit)
	if err != nil {
		return respondError(c, l, "list_reviews_error", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "reviews": reviews})
}

func (h *ReviewHTTP) UpdateReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "review.update")

	productID, err := uintPathParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}

	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	review, err := h.Svc.UpdateReview(ctx, productID, req.Rating, req.Comment, mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "update_review_error", err)
	}
	return c.JSON(http.StatusOK, review)
}

func (h *ReviewHTTP) DeleteReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "review.delete")

	productID, err := uintPathParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	if err := h.Svc.DeleteReview(ctx, productID, mwauth.ActorFromContext(c)); err != nil {
		return respondError(c, l, "delete_review_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

type FavoriteHTTP struct {
	Svc *service.FavoriteService
}

func (h *FavoriteHTTP) AddFavorite(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "favorite.add")

	productID, err := uintPathParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}

	favorite, err := h.Svc.AddFavorite(ctx, productID, mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "add_favorite_error", err)
	}
	return c.JSON(http.StatusCreated, favorite)
}

func (h *FavoriteHTTP) ListFavorites(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "favorite.list")

	favorites, err := h.Svc.ListFavorites(ctx, mwauth.ActorFromContext(c))
	if err != nil {
		return respondError(c, l, "list_favorites_error", err)
	}
	return c.JSON(http.StatusOK, favorites)
}

func (h *FavoriteHTTP) RemoveFavorite(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "favorite.remove")

	productID, err := uintPathParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	if err := h.Svc.RemoveFavorite(ctx, productID, mwauth.ActorFromContext(c)); err != nil {
		return respondError(c, l, "remove_favorite_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}
