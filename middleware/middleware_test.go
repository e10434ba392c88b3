package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anisha-singhal/Lumera-sub000/common/auth"
	"github.com/anisha-singhal/Lumera-sub000/common/logger"
	"github.com/anisha-singhal/Lumera-sub000/metrics"
	"github.com/anisha-singhal/Lumera-sub000/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(logger.RequestID(), middleware.RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := serve(r, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-123", entries[0].ContextMap()["request_id"])
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg, nil, zap.NewNop())
	r := gin.New()
	r.Use(middleware.Metrics(rec))
	r.GET("/orders/:order_number", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodGet, "/orders/LUM-20260310-AAAAAA", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/orders/LUM-20260310-BBBBBB", nil))

	expected := `
# HELP http_requests_total Total number of HTTP requests
# TYPE http_requests_total counter
http_requests_total{endpoint="/orders/:order_number",method="GET",status="200"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "http_requests_total"))
}

func TestRateLimit(t *testing.T) {
	rl := middleware.NewRateLimiter(rate.Every(time.Hour), 2, time.Minute)
	r := gin.New()
	r.Use(middleware.RateLimit(rl))
	r.POST("/checkout/complete", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/checkout/complete", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		codes = append(codes, serve(r, req).Code)
	}
	assert.Equal(t, []int{200, 200, http.StatusTooManyRequests}, codes)

	other := httptest.NewRequest(http.MethodPost, "/checkout/complete", nil)
	other.RemoteAddr = "198.51.100.1:5000"
	assert.Equal(t, http.StatusOK, serve(r, other).Code)
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := middleware.NewRateLimiter(rate.Limit(1), 1, -time.Second)
	rl.GetLimiter("203.0.113.7")
	rl.GetLimiter("198.51.100.1")
	assert.Equal(t, 2, rl.Sweep())
	assert.Equal(t, 0, rl.Sweep())
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(middleware.SecurityHeaders())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(middleware.CORS([]string{"https://lumera.in"}))
	r.POST("/checkout/complete", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("preflight from the storefront", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/checkout/complete", nil)
		req.Header.Set("Origin", "https://lumera.in")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")

		w := serve(r, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://lumera.in", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	})

	t.Run("simple request from the storefront", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/checkout/complete", nil)
		req.Header.Set("Origin", "https://lumera.in")

		w := serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://lumera.in", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/checkout/complete", nil)
		req.Header.Set("Origin", "https://evil.example")

		w := serve(r, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(middleware.Timeout(50 * time.Millisecond))
	var deadline time.Time
	var ok bool
	r.GET("/slow", func(c *gin.Context) {
		deadline, ok = c.Request.Context().Deadline()
		select {
		case <-c.Request.Context().Done():
			c.Status(http.StatusGatewayTimeout)
		case <-time.After(time.Second):
			c.Status(http.StatusOK)
		}
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.True(t, ok)
	assert.False(t, deadline.IsZero())
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func adminToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	return tok
}

func TestAdminOnly(t *testing.T) {
	r := gin.New()
	r.Use(middleware.AdminOnly(auth.NewTokenParser("s3cret")))
	r.GET("/admin/orders", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.AdminActor(c))
	})
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"refresh token", "Bearer " + adminToken(t, jwt.MapClaims{"sub": "ops@lumera.in", "role": "admin", "typ": "refresh", "exp": exp}), http.StatusUnauthorized},
		{"customer", "Bearer " + adminToken(t, jwt.MapClaims{"sub": "u1", "role": "customer", "typ": "access", "exp": exp}), http.StatusForbidden},
		{"admin", "Bearer " + adminToken(t, jwt.MapClaims{"sub": "ops@lumera.in", "role": "admin", "typ": "access", "exp": exp}), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "ops@lumera.in", w.Body.String())
			}
		})
	}
}
