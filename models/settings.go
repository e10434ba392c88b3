package models

import "time"

// StoreSettings holds the storefront-wide pricing knobs. There is a single row.
type StoreSettings struct {
	ID                    uint      `gorm:"primaryKey" json:"-"`
	Currency              string    `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
	ShippingFee           int64     `gorm:"not null;default:0" json:"shipping_fee"`
	FreeShippingThreshold int64     `gorm:"not null;default:0" json:"free_shipping_threshold"` // 0 = never free
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultStoreSettings is used until an admin saves settings.
func DefaultStoreSettings() StoreSettings {
	return StoreSettings{ID: 1, Currency: "INR", ShippingFee: 9900, FreeShippingThreshold: 99900}
}

// UpdateSettingsRequest is the admin payload for PUT /admin/settings.
type UpdateSettingsRequest struct {
	Currency              string `json:"currency" binding:"required,len=3"`
	ShippingFee           int64  `json:"shipping_fee" binding:"gte=0"`
	FreeShippingThreshold int64  `json:"free_shipping_threshold" binding:"gte=0"`
}
