package controllers

import (
	"net/http"
	"strconv"

	"github.com/anisha-singhal/Lumera-sub000/middleware"
	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/anisha-singhal/Lumera-sub000/services"
	"github.com/gin-gonic/gin"
)

type AdminController struct {
	orders   services.AdminOrderService
	settings services.SettingsService
}

func NewAdminController(orders services.AdminOrderService, settings services.SettingsService) *AdminController {
	return &AdminController{orders: orders, settings: settings}
}

// ListOrders handles GET /admin/orders?status=&payment_status=&needs_reconciliation=.
func (ac *AdminController) ListOrders(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	filter := models.OrderFilter{
		Status:        models.OrderStatus(ctx.Query("status")),
		PaymentStatus: models.PaymentStatus(ctx.Query("payment_status")),
		Page:          page,
		Limit:         limit,
	}
	if v := ctx.Query("needs_reconciliation"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "needs_reconciliation must be a boolean"})
			return
		}
		filter.NeedsReconciliation = &b
	}
	ac.listOrders(ctx, filter)
}

// ListReconciliation handles GET /admin/reconciliation: orders whose payment
// is not settled.
func (ac *AdminController) ListReconciliation(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	flagged := true
	ac.listOrders(ctx, models.OrderFilter{NeedsReconciliation: &flagged, Page: page, Limit: limit})
}

func (ac *AdminController) listOrders(ctx *gin.Context, filter models.OrderFilter) {
	orders, total, svcErr := ac.orders.ListOrders(ctx.Request.Context(), filter)
	if svcErr != nil {
		writeServiceError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"orders": orders, "meta": pageMeta(filter.Page, filter.Limit, total)})
}

func (ac *AdminController) GetOrder(ctx *gin.Context) {
	order, svcErr := ac.orders.GetOrder(ctx.Request.Context(), ctx.Param("order_number"))
	if svcErr != nil {
		writeServiceError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// CapturePayment handles POST /admin/orders/:order_number/capture.
func (ac *AdminController) CapturePayment(ctx *gin.Context) {
	order, svcErr := ac.orders.CapturePayment(ctx.Request.Context(), ctx.Param("order_number"), middleware.AdminActor(ctx))
	if svcErr != nil {
		writeServiceError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// UpdateStatus handles PUT /admin/orders/:order_number/status.
func (ac *AdminController) UpdateStatus(ctx *gin.Context) {
	var req models.UpdateOrderStatusRequest
	if !bindJSON(ctx, &req) {
		return
	}

	order, svcErr := ac.orders.UpdateStatus(ctx.Request.Context(), ctx.Param("order_number"), &req, middleware.AdminActor(ctx))
	if svcErr != nil {
		writeServiceError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// GetSettings serves both GET /settings and GET /admin/settings.
func (ac *AdminController) GetSettings(ctx *gin.Context) {
	settings, err := ac.settings.Get(ctx.Request.Context())
	if err != nil {
		_ = ctx.Error(err)
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Settings unavailable"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (ac *AdminController) UpdateSettings(ctx *gin.Context) {
	var req models.UpdateSettingsRequest
	if !bindJSON(ctx, &req) {
		return
	}

	settings, svcErr := ac.settings.Update(ctx.Request.Context(), &req)
	if svcErr != nil {
		writeServiceError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"settings": settings})
}
