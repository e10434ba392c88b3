package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/anisha-singhal/Lumera-sub000/repository"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/juju/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CouponService validates coupons for the storefront and manages them for
// admins. Validation never changes usage; RedeemCoupon is the only mutation
// and is called once per confirmed order.
type CouponService interface {
	CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, *ServiceError)
	ValidateCoupon(ctx context.Context, req *models.ValidateCouponRequest) (*models.ValidateCouponResponse, *ServiceError)
	Evaluate(ctx context.Context, code string, subtotal int64) (*models.ValidateCouponResponse, error)
	RedeemCoupon(ctx context.Context, code string) error
	GetCoupon(ctx context.Context, code string) (*models.Coupon, *ServiceError)
	DeactivateCoupon(ctx context.Context, code string) *ServiceError
	ListCoupons(ctx context.Context, page, limit int) ([]models.Coupon, int64, *ServiceError)
}

type couponServiceImpl struct {
	repo   repository.CouponRepository
	clock  clock.Clock
	logger *zap.Logger
}

func NewCouponService(repo repository.CouponRepository, clk clock.Clock, logger *zap.Logger) CouponService {
	if clk == nil {
		clk = clock.WallClock
	}
	return &couponServiceImpl{repo: repo, clock: clk, logger: logger}
}

func (s *couponServiceImpl) CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, *ServiceError) {
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.clock.Now()) {
		return nil, &ServiceError{StatusCode: 400, Message: "Expiry date must be in the future"}
	}
	if req.Type == models.CouponTypePercentage && req.Value > 100 {
		return nil, &ServiceError{StatusCode: 400, Message: "Percentage discount cannot exceed 100"}
	}

	coupon := &models.Coupon{
		Code:           strings.ToUpper(strings.TrimSpace(req.Code)),
		Type:           req.Type,
		Value:          req.Value,
		MinOrderAmount: req.MinOrderAmount,
		UsageLimit:     req.UsageLimit,
		ExpiresAt:      req.ExpiresAt,
		Active:         true,
	}

	if err := s.repo.Create(ctx, coupon); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, &ServiceError{StatusCode: 409, Message: "Coupon code already exists"}
		}
		s.logger.Error("Failed to create coupon", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to create coupon"}
	}

	s.logger.Info("Coupon created", zap.String("code", coupon.Code), zap.String("type", string(coupon.Type)))
	return coupon, nil
}

// ValidateCoupon is the public validation endpoint's entry point.
func (s *couponServiceImpl) ValidateCoupon(ctx context.Context, req *models.ValidateCouponRequest) (*models.ValidateCouponResponse, *ServiceError) {
	resp, err := s.Evaluate(ctx, req.Code, req.Subtotal)
	if err != nil {
		s.logger.Error("Failed to validate coupon", zap.String("code", req.Code), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to validate coupon"}
	}
	return resp, nil
}

// Evaluate applies the checks in order: exists, active, not expired, minimum
// subtotal, usage limit. A rejection is a normal response; err is reserved
// for store failures.
func (s *couponServiceImpl) Evaluate(ctx context.Context, code string, subtotal int64) (*models.ValidateCouponResponse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	coupon, err := s.repo.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrCouponNotFound) {
		return rejected(code, models.CouponNotFound, "Coupon code not found"), nil
	}
	if err != nil {
		return nil, err
	}

	if !coupon.Active {
		return rejected(code, models.CouponInactive, "Coupon is no longer active"), nil
	}
	if coupon.ExpiresAt != nil && !s.clock.Now().Before(*coupon.ExpiresAt) {
		return rejected(code, models.CouponExpired, "Coupon has expired"), nil
	}
	if subtotal < coupon.MinOrderAmount {
		return rejected(code, models.CouponBelowMinimum,
			fmt.Sprintf("Minimum order value of %s required", formatRupees(coupon.MinOrderAmount))), nil
	}
	if coupon.UsageLimit > 0 && coupon.UsageCount >= coupon.UsageLimit {
		return rejected(code, models.CouponLimitReached, "Coupon usage limit reached"), nil
	}

	return &models.ValidateCouponResponse{
		Valid:    true,
		Code:     coupon.Code,
		Type:     coupon.Type,
		Value:    coupon.Value,
		Discount: CalculateDiscount(coupon.Type, coupon.Value, subtotal),
		Message:  "Coupon applied successfully",
	}, nil
}

func (s *couponServiceImpl) RedeemCoupon(ctx context.Context, code string) error {
	return s.repo.IncrementUsage(ctx, code)
}

func (s *couponServiceImpl) GetCoupon(ctx context.Context, code string) (*models.Coupon, *ServiceError) {
	coupon, err := s.repo.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrCouponNotFound) {
		return nil, &ServiceError{StatusCode: 404, Message: "Coupon not found"}
	}
	if err != nil {
		s.logger.Error("Failed to load coupon", zap.String("code", code), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load coupon"}
	}
	return coupon, nil
}

func (s *couponServiceImpl) DeactivateCoupon(ctx context.Context, code string) *ServiceError {
	if err := s.repo.Deactivate(ctx, code); err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			return &ServiceError{StatusCode: 404, Message: "Coupon not found"}
		}
		s.logger.Error("Failed to deactivate coupon", zap.String("code", code), zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to deactivate coupon"}
	}

	s.logger.Info("Coupon deactivated", zap.String("code", code))
	return nil
}

func (s *couponServiceImpl) ListCoupons(ctx context.Context, page, limit int) ([]models.Coupon, int64, *ServiceError) {
	coupons, total, err := s.repo.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to list coupons", zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "Failed to list coupons"}
	}
	return coupons, total, nil
}

// CalculateDiscount returns round(subtotal*value/100) for percentage coupons
// and value for fixed coupons, never more than subtotal.
func CalculateDiscount(couponType models.CouponType, value, subtotal int64) int64 {
	if subtotal <= 0 || value <= 0 {
		return 0
	}
	var discount int64
	switch couponType {
	case models.CouponTypePercentage:
		discount = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(value)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	case models.CouponTypeFixed:
		discount = value
	}
	if discount > subtotal {
		discount = subtotal
	}
	return discount
}

func rejected(code string, reason models.CouponRejection, message string) *models.ValidateCouponResponse {
	return &models.ValidateCouponResponse{Valid: false, Code: code, Reason: reason, Message: message}
}

func formatRupees(paise int64) string {
	return "₹" + decimal.New(paise, -2).StringFixed(2)
}
