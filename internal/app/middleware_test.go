package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func TestIPLimiter_DropsIdleClients(t *testing.T) {
	l := newIPLimiter(1, 1)
	base := time.Date(2025, 8, 19, 10, 0, 0, 0, time.UTC)

	l.get("10.0.0.1", base)
	l.get("10.0.0.2", base.Add(5*time.Minute))
	if len(l.entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(l.entries))
	}

	// the next lookup after the sweep interval drops the idle client
	l.get("10.0.0.2", base.Add(limiterIdle+2*time.Minute))
	if _, ok := l.entries["10.0.0.1"]; ok {
		t.Fatal("idle client survived the sweep")
	}
	if _, ok := l.entries["10.0.0.2"]; !ok {
		t.Fatal("active client was dropped")
	}
}

func TestIPLimiter_KeepsBucketWhileActive(t *testing.T) {
	l := newIPLimiter(1, 1)
	now := time.Now()
	first := l.get("10.0.0.1", now)
	if !first.Allow() {
		t.Fatal("first request should pass")
	}
	if l.get("10.0.0.1", now.Add(time.Second)) != first {
		t.Fatal("expected the same limiter for a recent client")
	}
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(1, 1, zap.NewNop()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code != want {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, want)
		}
	}
}
