package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tsijukebox/jukebox-backend/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/github", nil)
	req.RemoteAddr = remote
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimiter_GlobalLimit(t *testing.T) {
	rl := NewRateLimiter(1.0, 2, 10.0, 10)
	defer rl.Stop()
	handler := rl.Limit(okHandler())

	for i, remote := range []string{"192.168.1.1:1234", "192.168.1.1:1234"} {
		if rr := hit(handler, remote); rr.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, rr.Code)
		}
	}
	rr := hit(handler, "192.168.1.2:1234")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third request should be limited, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimiter_PerIPLimit(t *testing.T) {
	rl := NewRateLimiter(100.0, 100, 1.0, 2)
	defer rl.Stop()
	handler := rl.Limit(okHandler())

	hit(handler, "192.168.1.1:1234")
	hit(handler, "192.168.1.1:1234")
	if rr := hit(handler, "192.168.1.1:1234"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected per-IP limit, got %d", rr.Code)
	}
	if rr := hit(handler, "192.168.1.2:1234"); rr.Code != http.StatusOK {
		t.Fatalf("other client should pass, got %d", rr.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "10.0.0.2:80", "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.7"}, "10.0.0.2:80", "203.0.113.7"},
		{"remote v4", nil, "192.168.1.1:1234", "192.168.1.1"},
		{"remote v6", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"no port", nil, "unix", "unix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(10.0, 10, 10.0, 10)
	defer rl.Stop()

	rl.getLimiter("192.168.1.1")
	rl.getLimiter("192.168.1.2")
	if n := rl.evictIdle(time.Now().Add(-time.Hour)); n != 0 {
		t.Fatalf("fresh limiters evicted: %d", n)
	}
	if n := rl.evictIdle(time.Now().Add(time.Second)); n != 2 {
		t.Fatalf("expected 2 evictions, got %d", n)
	}
	rl.Stop() // idempotent
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(100.0, 100, 10.0, 10)
	defer rl.Stop()
	handler := rl.Limit(okHandler())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				hit(handler, fmt.Sprintf("192.168.1.%d:1234", n))
			}
		}(i)
	}
	wg.Wait()
}

func TestRateLimiter_RefillsAfterWait(t *testing.T) {
	rl := NewRateLimiter(10.0, 1, 10.0, 1)
	defer rl.Stop()
	handler := rl.Limit(okHandler())

	hit(handler, "192.168.1.1:1234")
	if rr := hit(handler, "192.168.1.1:1234"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected limit, got %d", rr.Code)
	}
	time.Sleep(150 * time.Millisecond)
	if rr := hit(handler, "192.168.1.1:1234"); rr.Code != http.StatusOK {
		t.Fatalf("expected refill, got %d", rr.Code)
	}
}

func TestNewRateLimiterFromConfig(t *testing.T) {
	rl := NewRateLimiterFromConfig(&config.Config{RateLimitGlobal: 5, RateLimitGlobalBurst: 1, RateLimitPerIP: 5, RateLimitPerIPBurst: 1})
	defer rl.Stop()
	handler := rl.Limit(okHandler())
	if rr := hit(handler, "10.0.0.1:1"); rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	if rr := hit(handler, "10.0.0.2:1"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("global burst of 1 should limit the second request, got %d", rr.Code)
	}
}
