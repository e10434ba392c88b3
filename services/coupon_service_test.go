package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anisha-singhal/Lumera-sub000/models"
	"github.com/anisha-singhal/Lumera-sub000/repository"
	"github.com/anisha-singhal/Lumera-sub000/services"
	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var couponNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func activeCoupon(code string, typ models.CouponType, value, minOrder int64, limit, count int) *models.Coupon {
	exp := couponNow.Add(24 * time.Hour)
	return &models.Coupon{
		ID:             uuid.New(),
		Code:           code,
		Type:           typ,
		Value:          value,
		MinOrderAmount: minOrder,
		UsageLimit:     limit,
		UsageCount:     count,
		ExpiresAt:      &exp,
		Active:         true,
	}
}

func newCouponService(repo repository.CouponRepository) services.CouponService {
	return services.NewCouponService(repo, testclock.NewClock(couponNow), testLogger())
}

func TestEvaluate_Welcome10(t *testing.T) {
	repo := newMockCouponRepo(activeCoupon("WELCOME10", models.CouponTypePercentage, 10, 50000, 100, 99))
	svc := newCouponService(repo)

	res, err := svc.Evaluate(context.Background(), "welcome10", 100000)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, int64(10000), res.Discount)
	assert.Equal(t, "WELCOME10", res.Code)
	assert.Equal(t, models.CouponTypePercentage, res.Type)
	assert.Equal(t, int64(10), res.Value)

	// Validation alone never consumes a use.
	c, _ := repo.FindByCode(context.Background(), "WELCOME10")
	assert.Equal(t, 99, c.UsageCount)

	require.NoError(t, svc.RedeemCoupon(context.Background(), "WELCOME10"))
	c, _ = repo.FindByCode(context.Background(), "WELCOME10")
	assert.Equal(t, 100, c.UsageCount)

	res, err = svc.Evaluate(context.Background(), "WELCOME10", 100000)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, models.CouponLimitReached, res.Reason)

	err = svc.RedeemCoupon(context.Background(), "WELCOME10")
	assert.ErrorIs(t, err, repository.ErrCouponLimitReached)
}

func TestRedeemCoupon_ConcurrentLastUse(t *testing.T) {
	repo := newMockCouponRepo(activeCoupon("WELCOME10", models.CouponTypePercentage, 10, 50000, 100, 99))
	svc := newCouponService(repo)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.RedeemCoupon(context.Background(), "WELCOME10")
		}()
	}
	wg.Wait()
	close(results)

	var ok, limited int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrCouponLimitReached):
			limited++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, limited)

	c, _ := repo.FindByCode(context.Background(), "WELCOME10")
	assert.Equal(t, 100, c.UsageCount)
}

func TestEvaluate_RejectionReasons(t *testing.T) {
	expired := activeCoupon("OLD", models.CouponTypeFixed, 5000, 0, 0, 0)
	past := couponNow.Add(-time.Minute)
	expired.ExpiresAt = &past

	expiringNow := activeCoupon("EDGE", models.CouponTypeFixed, 5000, 0, 0, 0)
	expiringNow.ExpiresAt = &couponNow

	inactive := activeCoupon("OFF", models.CouponTypeFixed, 5000, 0, 0, 0)
	inactive.Active = false

	// Inactive and expired at once reports inactive: checks run in order.
	inactiveExpired := activeCoupon("BOTH", models.CouponTypeFixed, 5000, 0, 0, 0)
	inactiveExpired.Active = false
	inactiveExpired.ExpiresAt = &past

	// Below minimum and exhausted reports below_minimum.
	belowAndFull := activeCoupon("FULL", models.CouponTypeFixed, 5000, 200000, 10, 10)

	repo := newMockCouponRepo(expired, expiringNow, inactive, inactiveExpired, belowAndFull,
		activeCoupon("BIG", models.CouponTypePercentage, 10, 50000, 0, 0))
	svc := newCouponService(repo)

	tests := []struct {
		code     string
		subtotal int64
		reason   models.CouponRejection
	}{
		{"NOPE", 100000, models.CouponNotFound},
		{"OFF", 100000, models.CouponInactive},
		{"BOTH", 100000, models.CouponInactive},
		{"OLD", 100000, models.CouponExpired},
		{"EDGE", 100000, models.CouponExpired},
		{"BIG", 49999, models.CouponBelowMinimum},
		{"FULL", 100000, models.CouponBelowMinimum},
		{"FULL", 300000, models.CouponLimitReached},
	}
	for _, tt := range tests {
		t.Run(tt.code+"/"+string(tt.reason), func(t *testing.T) {
			res, err := svc.Evaluate(context.Background(), tt.code, tt.subtotal)
			require.NoError(t, err)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.reason, res.Reason)
			assert.NotEmpty(t, res.Message)
			assert.Zero(t, res.Discount)
		})
	}
	assert.Zero(t, repo.increments)
}

func TestEvaluate_UnlimitedCoupon(t *testing.T) {
	svc := newCouponService(newMockCouponRepo(activeCoupon("ALWAYS", models.CouponTypeFixed, 5000, 0, 0, 100000)))

	res, err := svc.Evaluate(context.Background(), "ALWAYS", 20000)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, int64(5000), res.Discount)
}

type failingCouponRepo struct{ *mockCouponRepo }

func (failingCouponRepo) FindByCode(context.Context, string) (*models.Coupon, error) {
	return nil, errors.New("connection refused")
}

func TestEvaluate_StoreErrorIsNotARejection(t *testing.T) {
	svc := newCouponService(failingCouponRepo{newMockCouponRepo()})

	res, err := svc.Evaluate(context.Background(), "ANY", 1000)
	assert.Error(t, err)
	assert.Nil(t, res)

	_, serr := svc.ValidateCoupon(context.Background(), &models.ValidateCouponRequest{Code: "ANY", Subtotal: 1000})
	require.NotNil(t, serr)
	assert.Equal(t, 500, serr.StatusCode)
}

func TestCalculateDiscount(t *testing.T) {
	tests := []struct {
		name     string
		typ      models.CouponType
		value    int64
		subtotal int64
		want     int64
	}{
		{"percentage", models.CouponTypePercentage, 10, 100000, 10000},
		{"percentage rounds half up", models.CouponTypePercentage, 15, 12345, 1852},
		{"percentage rounds down", models.CouponTypePercentage, 10, 12344, 1234},
		{"hundred percent", models.CouponTypePercentage, 100, 9999, 9999},
		{"fixed", models.CouponTypeFixed, 5000, 100000, 5000},
		{"fixed clamped", models.CouponTypeFixed, 5000, 3000, 3000},
		{"zero subtotal", models.CouponTypeFixed, 5000, 0, 0},
		{"unknown type", models.CouponType("bogo"), 5000, 10000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, services.CalculateDiscount(tt.typ, tt.value, tt.subtotal))
		})
	}
}

func TestCalculateDiscount_NeverExceedsSubtotal(t *testing.T) {
	for subtotal := int64(1); subtotal <= 200000; subtotal = subtotal*3 + 7 {
		for _, value := range []int64{1, 10, 33, 50, 99, 100, 1000, 250000} {
			for _, typ := range []models.CouponType{models.CouponTypePercentage, models.CouponTypeFixed} {
				if typ == models.CouponTypePercentage && value > 100 {
					continue
				}
				d := services.CalculateDiscount(typ, value, subtotal)
				assert.GreaterOrEqual(t, d, int64(0))
				assert.LessOrEqual(t, d, subtotal, "type=%s value=%d subtotal=%d", typ, value, subtotal)
				if typ == models.CouponTypeFixed && value <= subtotal {
					assert.Equal(t, value, d)
				}
			}
		}
	}
}

func TestCreateCoupon(t *testing.T) {
	repo := newMockCouponRepo()
	svc := newCouponService(repo)

	exp := couponNow.Add(48 * time.Hour)
	c, serr := svc.CreateCoupon(context.Background(), &models.CreateCouponRequest{
		Code: " summer20 ", Type: models.CouponTypePercentage, Value: 20, ExpiresAt: &exp,
	})
	require.Nil(t, serr)
	assert.Equal(t, "SUMMER20", c.Code)
	assert.True(t, c.Active)

	_, serr = svc.CreateCoupon(context.Background(), &models.CreateCouponRequest{
		Code: "TOOMUCH", Type: models.CouponTypePercentage, Value: 150,
	})
	require.NotNil(t, serr)
	assert.Equal(t, 400, serr.StatusCode)

	past := couponNow.Add(-time.Hour)
	_, serr = svc.CreateCoupon(context.Background(), &models.CreateCouponRequest{
		Code: "LATE", Type: models.CouponTypeFixed, Value: 100, ExpiresAt: &past,
	})
	require.NotNil(t, serr)
	assert.Equal(t, 400, serr.StatusCode)
}

func TestDeactivateCoupon(t *testing.T) {
	repo := newMockCouponRepo(activeCoupon("BYE", models.CouponTypeFixed, 100, 0, 0, 0))
	svc := newCouponService(repo)

	assert.Nil(t, svc.DeactivateCoupon(context.Background(), "BYE"))
	res, err := svc.Evaluate(context.Background(), "BYE", 1000)
	require.NoError(t, err)
	assert.Equal(t, models.CouponInactive, res.Reason)

	serr := svc.DeactivateCoupon(context.Background(), "MISSING")
	require.NotNil(t, serr)
	assert.Equal(t, 404, serr.StatusCode)

	_, serr = svc.GetCoupon(context.Background(), "MISSING")
	require.NotNil(t, serr)
	assert.Equal(t, 404, serr.StatusCode)
}
