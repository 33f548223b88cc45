package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/pkg/config"

	"github.com/gin-gonic/gin"
)

func limitedRouter(cfg *config.Config, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(pre...)
	router.Use(NewHTTPRateLimitMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func get(router http.Handler, mutate func(*http.Request)) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	if mutate != nil {
		mutate(req)
	}
	router.ServeHTTP(w, req)
	return w
}

func strictConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 1
	cfg.RateLimiting.HTTP.Burst = 1
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	return cfg
}

// Test that when rate limiting is disabled, middleware lets all requests through.
func TestHTTPRateLimitMiddleware_Disabled_AllowsRequests(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = false
	router := limitedRouter(cfg)

	for i := 0; i < 3; i++ {
		if w := get(router, nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i, w.Code)
		}
	}
}

func TestHTTPRateLimitMiddleware_Enabled_RateLimited(t *testing.T) {
	router := limitedRouter(strictConfig())

	if w := get(router, nil); w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for first request, got %d", w.Code)
	}

	w := get(router, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 for second request, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", w.Header().Get("Retry-After"))
	}
}

func TestHTTPRateLimitMiddleware_ForwardedForUsesFirstHop(t *testing.T) {
	router := limitedRouter(strictConfig())

	from := func(xff string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set("X-Forwarded-For", xff) }
	}

	if w := get(router, from("10.0.0.1, 172.16.0.1")); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := get(router, from("10.0.0.2, 172.16.0.1")); w.Code != http.StatusOK {
		t.Fatalf("different client behind the same proxy limited: %d", w.Code)
	}
	if w := get(router, from("10.0.0.1")); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for repeated client, got %d", w.Code)
	}
}

func TestHTTPRateLimitMiddleware_KeysByAuthenticatedUser(t *testing.T) {
	var caller domain.UserID
	setCaller := func(c *gin.Context) {
		c.Set(ContextUserID, caller)
		c.Next()
	}
	router := limitedRouter(strictConfig(), setCaller)

	caller = 1
	if w := get(router, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	caller = 2
	if w := get(router, nil); w.Code != http.StatusOK {
		t.Fatalf("second user shares the first user's bucket: %d", w.Code)
	}
	caller = 1
	if w := get(router, nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestHTTPRateLimitMiddleware_ConcurrencyCap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 100
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 1

	entered := make(chan struct{})
	release := make(chan struct{})
	router := gin.New()
	router.Use(NewHTTPRateLimitMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) {
		close(entered)
		<-release
		c.Status(http.StatusOK)
	})

	done := make(chan int)
	go func() { done <- get(router, nil).Code }()
	<-entered

	if w := get(router, nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while the slot is taken, got %d", w.Code)
	}
	close(release)
	if code := <-done; code != http.StatusOK {
		t.Fatalf("expected first request to finish with 200, got %d", code)
	}
}

func TestRateLimiterStore_PrunesIdleBuckets(t *testing.T) {
	store := newRateLimiterStore(1, 1)
	now := time.Now()
	store.now = func() time.Time { return now }

	store.getLimiter("a")
	store.getLimiter("b")

	now = now.Add(limiterIdleTTL + time.Second)
	store.getLimiter("c")

	if n := store.size(); n != 1 {
		t.Fatalf("expected idle buckets pruned, %d left", n)
	}
}
