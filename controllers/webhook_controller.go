package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/anisha-singhal/Lumera-sub000/services"
	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

type WebhookController struct {
	webhooks services.WebhookService
}

func NewWebhookController(webhooks services.WebhookService) *WebhookController {
	return &WebhookController{webhooks: webhooks}
}

// PaymentWebhook handles POST /webhooks/payment. Anything that passes the
// signature check is acknowledged so the gateway stops redelivering; only a
// bad signature gets a 400.
func (wc *WebhookController) PaymentWebhook(ctx *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBody))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	result, err := wc.webhooks.HandleWebhook(ctx.Request.Context(), payload, ctx.Request.Header)
	if errors.Is(err, services.ErrWebhookRejected) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}
	ctx.Set("webhook_result", result)
	ctx.JSON(http.StatusOK, gin.H{"status": "received"})
}
