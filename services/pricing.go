package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/anisha-singhal/Lumera-sub000/models"
	"go.uber.org/zap"
)

// PricingService computes what a cart costs from line prices, coupon and
// store settings. A client's declared totals are ignored, but unit prices
// come from the cart as sent; the storefront has no catalog to check them.
type PricingService struct {
	settings SettingsService
	coupons  CouponService
	logger   *zap.Logger
}

func NewPricingService(settings SettingsService, coupons CouponService, logger *zap.Logger) *PricingService {
	return &PricingService{settings: settings, coupons: coupons, logger: logger}
}

// Quote prices items with the optional coupon. A rejected coupon contributes
// no discount and is reported in CouponRejected.
func (p *PricingService) Quote(ctx context.Context, items []models.CartItem, couponCode string) (*models.Pricing, error) {
	var subtotal int64
	for _, it := range items {
		if it.Quantity <= 0 || it.UnitPrice <= 0 {
			return nil, fmt.Errorf("invalid line %q: quantity and unit price must be positive", it.Name)
		}
		if it.Quantity > models.MaxQuantity || it.UnitPrice > models.MaxUnitPrice {
			return nil, fmt.Errorf("invalid line %q: over the per-line limit", it.Name)
		}
		subtotal += it.UnitPrice * int64(it.Quantity)
	}

	settings, err := p.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	pricing := &models.Pricing{Subtotal: subtotal, Currency: settings.Currency}

	if code := strings.TrimSpace(couponCode); code != "" {
		res, err := p.coupons.Evaluate(ctx, code, subtotal)
		if err != nil {
			return nil, fmt.Errorf("evaluate coupon: %w", err)
		}
		if res.Valid {
			pricing.Discount = res.Discount
			pricing.CouponCode = res.Code
		} else {
			pricing.CouponRejected = res.Reason
			p.logger.Info("Coupon not applied", zap.String("code", code), zap.String("reason", string(res.Reason)))
		}
	}

	afterDiscount := subtotal - pricing.Discount
	if settings.FreeShippingThreshold <= 0 || afterDiscount < settings.FreeShippingThreshold {
		pricing.Shipping = settings.ShippingFee
	}
	pricing.Total = afterDiscount + pricing.Shipping
	return pricing, nil
}
