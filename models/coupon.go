package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponType represents the type of discount a coupon provides.
type CouponType string

const (
	CouponTypePercentage CouponType = "percentage"
	CouponTypeFixed      CouponType = "fixed"
)

// CouponRejection is the specific reason a coupon cannot be applied.
type CouponRejection string

const (
	CouponNotFound     CouponRejection = "not_found"
	CouponInactive     CouponRejection = "inactive"
	CouponExpired      CouponRejection = "expired"
	CouponBelowMinimum CouponRejection = "below_minimum"
	CouponLimitReached CouponRejection = "limit_reached"
)

// Coupon is a promotional code. Value is a percentage for percentage coupons
// and paise for fixed coupons.
type Coupon struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code           string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	Type           CouponType `gorm:"type:varchar(20);not null" json:"type"`
	Value          int64      `gorm:"not null" json:"value"`
	MinOrderAmount int64      `gorm:"not null;default:0" json:"min_order_amount"`
	UsageLimit     int        `gorm:"not null;default:0" json:"usage_limit"` // 0 = unlimited
	UsageCount     int        `gorm:"not null;default:0" json:"usage_count"`
	Active         bool       `gorm:"not null;default:true" json:"active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreateCouponRequest is the payload for creating a new coupon.
type CreateCouponRequest struct {
	Code           string     `json:"code" binding:"required,min=3,max=64"`
	Type           CouponType `json:"type" binding:"required,oneof=percentage fixed"`
	Value          int64      `json:"value" binding:"required,gt=0"`
	MinOrderAmount int64      `json:"min_order_amount" binding:"gte=0"`
	UsageLimit     int        `json:"usage_limit" binding:"gte=0"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

// ValidateCouponRequest is the payload for validating a coupon against a cart.
type ValidateCouponRequest struct {
	Code     string `json:"code" binding:"required"`
	Subtotal int64  `json:"subtotal" binding:"required,gt=0"`
}

// ValidateCouponResponse is the result of a validation; Reason is set only
// when Valid is false.
type ValidateCouponResponse struct {
	Valid    bool            `json:"valid"`
	Code     string          `json:"code"`
	Type     CouponType      `json:"type,omitempty"`
	Value    int64           `json:"value,omitempty"`
	Discount int64           `json:"discount"`
	Reason   CouponRejection `json:"reason,omitempty"`
	Message  string          `json:"message,omitempty"`
}
