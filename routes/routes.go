package routes

import (
	"github.com/anisha-singhal/Lumera-sub000/common/auth"
	"github.com/anisha-singhal/Lumera-sub000/controllers"
	"github.com/anisha-singhal/Lumera-sub000/middleware"
	"github.com/gin-gonic/gin"
)

type Controllers struct {
	Checkout *controllers.CheckoutController
	Webhooks *controllers.WebhookController
	Coupons  *controllers.CouponController
	Admin    *controllers.AdminController
}

// RegisterRoutes wires the storefront, gateway and admin surfaces. The
// storefront is rate limited per client IP; the webhook is not, since the
// gateway retries from a small set of addresses.
func RegisterRoutes(r *gin.Engine, c Controllers, limiter *middleware.RateLimiter, tokens *auth.TokenParser) {
	store := r.Group("/")
	store.Use(middleware.RateLimit(limiter))
	{
		store.POST("/checkout/quote", c.Checkout.Quote)
		store.POST("/checkout/orders", c.Checkout.InitiateCheckout)
		store.POST("/checkout/complete", c.Checkout.CompleteCheckout)
		store.POST("/coupons/validate", c.Coupons.ValidateCoupon)
		store.GET("/settings", c.Admin.GetSettings)
	}

	r.POST("/webhooks/payment", c.Webhooks.PaymentWebhook)

	admin := r.Group("/admin")
	admin.Use(middleware.AdminOnly(tokens))
	{
		admin.GET("/orders", c.Admin.ListOrders)
		admin.GET("/orders/:order_number", c.Admin.GetOrder)
		admin.POST("/orders/:order_number/capture", c.Admin.CapturePayment)
		admin.PATCH("/orders/:order_number/status", c.Admin.UpdateStatus)
		admin.GET("/reconciliation", c.Admin.ListReconciliation)

		admin.GET("/settings", c.Admin.GetSettings)
		admin.PUT("/settings", c.Admin.UpdateSettings)

		admin.POST("/coupons", c.Coupons.CreateCoupon)
		admin.GET("/coupons", c.Coupons.ListCoupons)
		admin.GET("/coupons/:code", c.Coupons.GetCoupon)
		admin.DELETE("/coupons/:code", c.Coupons.DeactivateCoupon)
	}
}
