package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/kmalykhin/storefront/internal/metrics"
	mwauth "github.com/kmalykhin/storefront/internal/middleware/auth"
)

type Deps struct {
	AuthHandler     *AuthHTTP
	CartHandler     *CartHTTP
	ProductHandler  *ProductHTTP
	CouponHandler   *CouponHTTP
	ReviewHandler   *ReviewHTTP
	FavoriteHandler *FavoriteHTTP
	OrderHandler    *OrderHTTP
	UploadHandler   *UploadHTTP
	JWTSecret       []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/metrics", metrics.Handler())

	authMW := &mwauth.Middleware{JWTSecret: d.JWTSecret}
	loginLimiter := middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(5)))

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login, loginLimiter)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout, authMW.RequireLogin)
	auth.POST("/revoke", d.AuthHandler.Revoke)
	auth.POST("/forgot-password", d.AuthHandler.ForgotPassword)
	auth.POST("/reset-password", d.AuthHandler.ResetPassword)
	auth.POST("/change-password", d.AuthHandler.ChangePassword, authMW.RequireLogin)

	carts := api.Group("/carts", authMW.RequireLogin)
	carts.GET("", d.CartHandler.GetCart)
	carts.POST("/items", d.CartHandler.AddItem)
	carts.PUT("/items", d.CartHandler.UpdateItem)
	carts.DELETE("/items", d.CartHandler.RemoveItem)
	carts.POST("/apply-coupon", d.CartHandler.ApplyCoupon)
	carts.POST("/checkout", d.CartHandler.Checkout)

	products := api.Group("/products")
	products.GET("", d.ProductHandler.ListProducts)
	products.GET("/search", d.ProductHandler.Search)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.GET("/:id/reviews", d.ReviewHandler.ListReviews)
	products.POST("/:id/reviews", d.ReviewHandler.AddReview, authMW.RequireLogin)
	products.PUT("/:id/reviews", d.ReviewHandler.UpdateReview, authMW.RequireLogin)
	products.DELETE("/:id/reviews", d.ReviewHandler.DeleteReview, authMW.RequireLogin)
	products.POST("/:id/favorite", d.FavoriteHandler.AddFavorite, authMW.RequireLogin)
	products.DELETE("/:id/favorite", d.FavoriteHandler.RemoveFavorite, authMW.RequireLogin)

	api.GET("/favorites", d.FavoriteHandler.ListFavorites, authMW.RequireLogin)

	orders := api.Group("/orders", authMW.RequireLogin)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)

	uploads := api.Group("/uploads", authMW.RequireLogin)
	uploads.POST("", d.UploadHandler.StartUpload)
	uploads.PUT("/:id/chunks", d.UploadHandler.PutChunk)
	uploads.POST("/:id/complete", d.UploadHandler.CompleteUpload)
	uploads.GET("/:id", d.UploadHandler.Download)

	admin := api.Group("/admin", authMW.RequireAdmin)
	admin.POST("/products", d.ProductHandler.CreateProduct)
	admin.PATCH("/products/:id", d.ProductHandler.PatchProduct)
	admin.DELETE("/products/:id", d.ProductHandler.DeleteProduct)
	admin.POST("/coupons", d.CouponHandler.CreateCoupon)
	admin.GET("/coupons", d.CouponHandler.ListCoupons)
	admin.DELETE("/coupons/:id", d.CouponHandler.DeleteCoupon)
}
