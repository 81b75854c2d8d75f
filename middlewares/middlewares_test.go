package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/library-seat-app/config"
	"github.com/yeremiapane/library-seat-app/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTConfig("middleware-test-secret", time.Hour)
}

func whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint(CtxUserID), "role": c.GetString(CtxRole)})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthMiddleware(false, nil), whoami)
	r.GET("/ws", AuthMiddleware(true, nil), whoami)

	token, err := utils.GenerateToken(9, "USER")
	require.NoError(t, err)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authorization token missing")

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token "+token)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":9,"role":"USER"}`, w.Body.String())

	// query tokens only where explicitly allowed
	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil)).Code)
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)).Code)
}

func TestAuthMiddlewareRevokedToken(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthMiddleware(false, nil), whoami)

	token, err := utils.GenerateToken(10, "USER")
	require.NoError(t, err)
	utils.BlacklistToken(token, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "revoked")
}

func TestRequireRoles(t *testing.T) {
	r := gin.New()
	r.GET("/admin", AuthMiddleware(false, nil), RequireRoles("ADMIN"), whoami)
	r.GET("/open", RequireRoles("ADMIN"), whoami)

	userToken, _ := utils.GenerateToken(1, "USER")
	adminToken, _ := utils.GenerateToken(2, "ADMIN")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	w := serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "admin access required")

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/open", nil)).Code)
}

func TestAuthMiddlewareAccountLookup(t *testing.T) {
	accounts := map[uint]struct {
		role   string
		active bool
	}{
		20: {"USER", true},
		21: {"USER", false},
	}
	lookup := func(_ context.Context, id uint) (string, bool, error) {
		switch id {
		case 23:
			return "", false, errors.New("db down")
		case 24:
			return "", false, errAccountNotFound
		}
		a := accounts[id]
		return a.role, a.active, nil
	}

	r := gin.New()
	r.GET("/admin", AuthMiddleware(false, lookup), RequireRoles("ADMIN"), whoami)
	r.GET("/me", AuthMiddleware(false, lookup), whoami)

	tests := []struct {
		name     string
		userID   uint
		path     string
		wantCode int
		wantBody string
	}{
		{"demoted admin token loses admin routes", 20, "/admin", http.StatusForbidden, "admin access required"},
		{"role comes from the account", 20, "/me", http.StatusOK, `"role":"USER"`},
		{"disabled account", 21, "/me", http.StatusUnauthorized, "account is disabled"},
		{"deleted account", 24, "/me", http.StatusUnauthorized, "no longer exists"},
		{"lookup failure", 23, "/me", http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// every token claims ADMIN; only the account decides
			token, err := utils.GenerateToken(tt.userID, "ADMIN")
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := serve(r, req)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestRateLimiterLocalFallback(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		Prefix:         "test",
	}, nil))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for i := 0; i < 2; i++ {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}
	w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// a different client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(config.RateLimitConfig{Enabled: false, Capacity: 1}, nil))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
	}
}

func TestStrictRateLimiterIsPerRoute(t *testing.T) {
	r := gin.New()
	strict := NewStrictRateLimiter(config.RateLimitConfig{Enabled: true, Prefix: "t", AuthCapacity: 1, AuthInterval: time.Hour}, nil)
	r.POST("/login", strict, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/register", strict, func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodPost, "/login", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, httptest.NewRequest(http.MethodPost, "/login", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodPost, "/register", nil)).Code)
}

func TestCORSMiddlewares(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddlewares([]string{"http://localhost:3000/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcard(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddlewares([]string{"*"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	w := serve(r, req)
	assert.Equal(t, "https://anywhere.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryAndSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(), SecurityHeaders())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	r.POST("/pay", PaymentSecurityHeaders(), LogPaymentRequest(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"internal server error"}`, w.Body.String())
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	w = serve(r, httptest.NewRequest(http.MethodPost, "/pay", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
