package controllers

import (
	"net/http"

	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/anisha-singhal/Lumera-sub000/services"
	"github.com/gin-gonic/gin"
)

// CouponController serves the public validator and the admin coupon surface.
type CouponController struct {
	coupons services.CouponService
}

func NewCouponController(coupons services.CouponService) *CouponController {
	return &CouponController{coupons: coupons}
}

// ValidateCoupon handles POST /coupons/validate. A coupon that does not apply
// is still a 200; the body says why.
func (cc *CouponController) ValidateCoupon(ctx *gin.Context) {
	var req models.ValidateCouponRequest
	if !bindJSON(ctx, &req) {
		return
	}
	result, svcErr := cc.coupons.ValidateCoupon(ctx.Request.Context(), &req)
	if svcErr != nil {
		writeServiceError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// CreateCoupon handles POST /admin/coupons.
func (cc *CouponController) CreateCoupon(ctx *gin.Context) {
	var req models.CreateCouponRequest
	if !bindJSON(ctx, &req) {
		return
	}
	coupon, svcErr := cc.coupons.CreateCoupon(ctx.Request.Context(), &req)
	if svcErr != nil {
		writeServiceError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"coupon": coupon})
}

func (cc *CouponController) GetCoupon(ctx *gin.Context) {
	coupon, svcErr := cc.coupons.GetCoupon(ctx.Request.Context(), ctx.Param("code"))
	if svcErr != nil {
		writeServiceError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"coupon": coupon})
}

// DeactivateCoupon handles DELETE /admin/coupons/:code. Coupons are never
// removed because redeemed orders still reference the code.
func (cc *CouponController) DeactivateCoupon(ctx *gin.Context) {
	if svcErr := cc.coupons.DeactivateCoupon(ctx.Request.Context(), ctx.Param("code")); svcErr != nil {
		writeServiceError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Coupon deactivated"})
}

func (cc *CouponController) ListCoupons(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	coupons, total, svcErr := cc.coupons.ListCoupons(ctx.Request.Context(), page, limit)
	if svcErr != nil {
		writeServiceError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"coupons": coupons, "meta": pageMeta(page, limit, total)})
}
