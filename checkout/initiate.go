package checkout

import (
	"context"

	"github.com/anisha-singhal/Lumera-sub000/common/logger"
	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Initiate prices the cart and opens a gateway order for that amount. Nothing
// is stored; the buyer's cart lives client-side until Complete.
func (o *Orchestrator) Initiate(ctx context.Context, req *models.InitiateCheckoutRequest) (*models.InitiateCheckoutResponse, *Error) {
	log := logger.FromContext(ctx, o.logger)

	if _, err := MapItems(req.Items); err != nil {
		return nil, notCharged(KindInvalidRequest, err)
	}

	pricing, err := o.pricing.Quote(ctx, req.Items, req.CouponCode)
	if err != nil {
		log.Error("Failed to price cart", zap.Error(err))
		return nil, notCharged(KindPricingUnavailable, err)
	}

	receipt := uuid.NewString()
	gwOrder, err := o.gateway.CreateOrder(ctx, pricing.Total, pricing.Currency, receipt)
	if err != nil {
		log.Error("Failed to create gateway order", zap.String("receipt", receipt), zap.Error(err))
		return nil, notCharged(KindGatewayUnavailable, err)
	}

	log.Info("Gateway order created",
		zap.String("gateway", o.gateway.Name()),
		zap.String("gateway_order_id", gwOrder.ID),
		zap.String("receipt", receipt),
		zap.Int64("amount", gwOrder.Amount),
	)

	currency := gwOrder.Currency
	if currency == "" {
		currency = pricing.Currency
	}
	return &models.InitiateCheckoutResponse{
		GatewayOrderID: gwOrder.ID,
		Amount:         gwOrder.Amount,
		Currency:       currency,
		KeyID:          o.gateway.KeyID(),
		Receipt:        receipt,
		ClientSecret:   gwOrder.ClientSecret,
		ClientProof:    gwOrder.ClientProof,
		Pricing:        *pricing,
	}, nil
}
