package limiter

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"sims/internal/pkg/logx"
)

func TestMiddlewareLimitsPerIP(t *testing.T) {
	logx.InitTestLogger(io.Discard)
	l := NewIPRateLimiter("test", rate.Every(time.Hour), 2)
	defer l.Stop()

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(addr string) int {
		r := httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil)
		r.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, send("192.0.2.1:1000"))
	assert.Equal(t, http.StatusNoContent, send("192.0.2.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.1:1002"))
	assert.Equal(t, http.StatusNoContent, send("192.0.2.2:1000"))
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	l := NewIPRateLimiter("test", rate.Every(time.Second), 1)
	defer l.Stop()

	l.Allow("192.0.2.1")
	l.GetLimiter("192.0.2.2")

	removed, remaining := l.sweep(time.Now().Add(time.Minute))

	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, remaining)
}

func TestStopIsIdempotent(t *testing.T) {
	l := NewIPRateLimiter("test", rate.Inf, 1)
	l.Stop()
	assert.NotPanics(t, l.Stop)
}

func TestStopEndsCleanupLoop(t *testing.T) {
	l := NewIPRateLimiter("test", rate.Inf, 1)
	select {
	case <-l.Done():
		t.Fatal("cleanup loop exited before Stop")
	default:
	}

	l.Stop()
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("cleanup loop still running after Stop")
	}
}
