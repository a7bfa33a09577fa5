/*
Package limiter provides request rate limiting keyed by client IP address.

Each address gets a token bucket (rate.Limiter). A background goroutine drops buckets
that have refilled completely so idle visitors do not accumulate.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sims/internal/pkg/errs"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/resp"
)

// CleanupInterval is how often idle buckets are dropped.
const CleanupInterval = 3 * time.Minute

// IPRateLimiter holds one token bucket per client IP address.
type IPRateLimiter struct {
	// name identifies the limiter in logs (e.g. "sign-in").
	name string

	// mu protects limits.
	mu sync.RWMutex

	// limits maps client IP addresses to their buckets.
	limits map[string]*rate.Limiter

	// r is the refill rate in events per second.
	r rate.Limit

	// b is the bucket size.
	b int

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewIPRateLimiter creates a limiter with rate r and burst b and starts its cleanup loop.
// Call Stop to end the loop.
func NewIPRateLimiter(name string, r rate.Limit, b int) *IPRateLimiter {
	i := &IPRateLimiter{
		name:   name,
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	go i.cleanUpVisitors()

	return i
}

// GetLimiter returns the bucket for ip, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.limits[ip]
	i.mu.RUnlock()

	if !exists {
		i.mu.Lock()
		limiter, exists = i.limits[ip]
		if !exists {
			limiter = rate.NewLimiter(i.r, i.b)
			i.limits[ip] = limiter
		}
		i.mu.Unlock()
	}

	return limiter
}

// Allow reports whether a request from ip may proceed now.
func (i *IPRateLimiter) Allow(ip string) bool {
	return i.GetLimiter(ip).Allow()
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (i *IPRateLimiter) Stop() {
	i.stopOnce.Do(func() { close(i.stop) })
}

// Done is closed once the cleanup loop has exited after Stop.
func (i *IPRateLimiter) Done() <-chan struct{} {
	return i.done
}

// cleanUpVisitors drops buckets that are full again, i.e. visitors idle for a while.
func (i *IPRateLimiter) cleanUpVisitors() {
	defer close(i.done)
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-i.stop:
			return
		case now := <-ticker.C:
			removed, remaining := i.sweep(now)
			logx.Debug("Rate limiter cleanup finished",
				"limiter", i.name,
				"removed", removed,
				"remaining", remaining,
			)
		}
	}
}

func (i *IPRateLimiter) sweep(now time.Time) (removed, remaining int) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for ip, limiter := range i.limits {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(i.limits, ip)
			removed++
		}
	}
	return removed, len(i.limits)
}

// ClientIP extracts the client address from r.RemoteAddr (already rewritten by RealIP).
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if ip == "" {
		ip = "unknown_ip"
	}
	return ip
}

// Middleware rejects requests over the limit with 429 Too Many Requests.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)

		if !i.Allow(ip) {
			logx.Warn("Request rejected by rate limiter", "limiter", i.name, "ip", logx.AnonymizeIP(ip))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}
