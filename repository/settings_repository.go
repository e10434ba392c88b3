package repository

import (
	"context"
	"errors"

	"github.com/anisha-singhal/Lumera-sub000/models"
	"gorm.io/gorm"
)

// SettingsRepository stores the single StoreSettings row.
type SettingsRepository interface {
	Get(ctx context.Context) (*models.StoreSettings, error)
	Save(ctx context.Context, settings *models.StoreSettings) error
}

type GormSettingsRepository struct {
	db *gorm.DB
}

func NewGormSettingsRepository(db *gorm.DB) SettingsRepository {
	return &GormSettingsRepository{db: db}
}

// Get returns the saved settings, or the defaults when none were saved yet.
func (r *GormSettingsRepository) Get(ctx context.Context) (*models.StoreSettings, error) {
	var s models.StoreSettings
	err := r.db.WithContext(ctx).First(&s, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d := models.DefaultStoreSettings()
		return &d, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSettingsRepository) Save(ctx context.Context, settings *models.StoreSettings) error {
	settings.ID = 1
	return r.db.WithContext(ctx).Save(settings).Error
}
