package controllers

import (
	"context"
	"net/http"

	"github.com/anisha-singhal/Lumera-sub000/checkout"
	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/gin-gonic/gin"
)

// CheckoutFlow is implemented by *checkout.Orchestrator.
type CheckoutFlow interface {
	Initiate(ctx context.Context, req *models.InitiateCheckoutRequest) (*models.InitiateCheckoutResponse, *checkout.Error)
	Complete(ctx context.Context, req *models.CompleteCheckoutRequest) (*models.OrderConfirmation, *checkout.Error)
}

type CheckoutController struct {
	flow   CheckoutFlow
	pricer checkout.Pricer
}

func NewCheckoutController(flow CheckoutFlow, pricer checkout.Pricer) *CheckoutController {
	registerValidators()
	return &CheckoutController{flow: flow, pricer: pricer}
}

// Quote handles POST /checkout/quote.
func (cc *CheckoutController) Quote(ctx *gin.Context) {
	var req models.InitiateCheckoutRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if _, err := checkout.MapItems(req.Items); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	pricing, err := cc.pricer.Quote(ctx.Request.Context(), req.Items, req.CouponCode)
	if err != nil {
		_ = ctx.Error(err)
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Pricing unavailable"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"pricing": pricing})
}

// InitiateCheckout handles POST /checkout/orders.
func (cc *CheckoutController) InitiateCheckout(ctx *gin.Context) {
	var req models.InitiateCheckoutRequest
	if !bindJSON(ctx, &req) {
		return
	}

	resp, cerr := cc.flow.Initiate(ctx.Request.Context(), &req)
	if cerr != nil {
		writeCheckoutError(ctx, cerr)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// CompleteCheckout handles POST /checkout/complete. A replayed request gets
// the original order back with 200.
func (cc *CheckoutController) CompleteCheckout(ctx *gin.Context) {
	var req models.CompleteCheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":     string(checkout.KindInvalidRequest),
			"message":   checkout.MessageNotCharged,
			"details":   err.Error(),
			"retryable": true,
		})
		return
	}

	conf, cerr := cc.flow.Complete(ctx.Request.Context(), &req)
	if cerr != nil {
		writeCheckoutError(ctx, cerr)
		return
	}

	status := http.StatusCreated
	if conf.Replayed {
		status = http.StatusOK
	}
	ctx.JSON(status, gin.H{"order": conf})
}

func writeCheckoutError(ctx *gin.Context, cerr *checkout.Error) {
	_ = ctx.Error(cerr)
	ctx.JSON(cerr.HTTPStatus(), gin.H{
		"error":            string(cerr.Kind),
		"message":          cerr.Message,
		"payment_captured": cerr.PaymentCaptured,
		"refund_initiated": cerr.RefundInitiated,
		"retryable":        cerr.Retryable,
	})
}
