package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/anisha-singhal/Lumera-sub000/cache"
	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/anisha-singhal/Lumera-sub000/repository"
	"go.uber.org/zap"
)

const settingsCacheKey = "store_settings"

// ErrSettingsUnavailable means neither the cache, the store nor an earlier
// read could supply the store settings.
var ErrSettingsUnavailable = errors.New("store settings unavailable")

// SettingsService reads store settings through a cache. When the store is
// down the last settings read from it are served; with none, Get fails
// rather than pricing with built-in defaults.
type SettingsService interface {
	Get(ctx context.Context) (models.StoreSettings, error)
	Update(ctx context.Context, req *models.UpdateSettingsRequest) (*models.StoreSettings, *ServiceError)
}

type settingsServiceImpl struct {
	repo   repository.SettingsRepository
	cache  cache.Cache
	logger *zap.Logger

	mu       sync.RWMutex
	lastGood *models.StoreSettings
}

func NewSettingsService(repo repository.SettingsRepository, c cache.Cache, logger *zap.Logger) SettingsService {
	return &settingsServiceImpl{repo: repo, cache: c, logger: logger}
}

func (s *settingsServiceImpl) Get(ctx context.Context) (models.StoreSettings, error) {
	if raw, ok := s.cache.Get(ctx, settingsCacheKey); ok {
		var cached models.StoreSettings
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		s.logger.Warn("Discarding unreadable cached settings")
	}

	settings, err := s.repo.Get(ctx)
	if err != nil {
		s.mu.RLock()
		last := s.lastGood
		s.mu.RUnlock()
		if last != nil {
			s.logger.Warn("Failed to load store settings, serving last known", zap.Error(err))
			return *last, nil
		}
		s.logger.Error("Failed to load store settings", zap.Error(err))
		return models.StoreSettings{}, fmt.Errorf("%w: %v", ErrSettingsUnavailable, err)
	}
	s.remember(settings)

	if raw, err := json.Marshal(settings); err == nil {
		if err := s.cache.Set(ctx, settingsCacheKey, raw); err != nil {
			s.logger.Warn("Failed to cache store settings", zap.Error(err))
		}
	}
	return *settings, nil
}

func (s *settingsServiceImpl) remember(settings *models.StoreSettings) {
	cp := *settings
	s.mu.Lock()
	s.lastGood = &cp
	s.mu.Unlock()
}

func (s *settingsServiceImpl) Update(ctx context.Context, req *models.UpdateSettingsRequest) (*models.StoreSettings, *ServiceError) {
	settings := &models.StoreSettings{
		Currency:              strings.ToUpper(req.Currency),
		ShippingFee:           req.ShippingFee,
		FreeShippingThreshold: req.FreeShippingThreshold,
	}
	if err := s.repo.Save(ctx, settings); err != nil {
		s.logger.Error("Failed to save store settings", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to save settings"}
	}
	s.remember(settings)
	if err := s.cache.Invalidate(ctx, settingsCacheKey); err != nil {
		s.logger.Warn("Failed to invalidate settings cache", zap.Error(err))
	}

	s.logger.Info("Store settings updated",
		zap.String("currency", settings.Currency),
		zap.Int64("shipping_fee", settings.ShippingFee),
		zap.Int64("free_shipping_threshold", settings.FreeShippingThreshold),
	)
	return settings, nil
}
