package api

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter table; it is cleared when full.
const maxTrackedClients = 10000

// clientLimiter keeps one token bucket per client key.
type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(rps) + 1
	}
	return &clientLimiter{limiters: make(map[string]*rate.Limiter), rps: rate.Limit(rps), burst: burst}
}

func (c *clientLimiter) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[key]
	if !ok {
		if len(c.limiters) >= maxTrackedClients {
			clear(c.limiters)
		}
		lim = rate.NewLimiter(c.rps, c.burst)
		c.limiters[key] = lim
	}
	return lim.Allow()
}

func (s *HTTPServer) clientKey(r *http.Request) string {
	if id := r.Header.Get(s.identityHeader); id != "" {
		return "u:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func (s *HTTPServer) rateLimit(l *clientLimiter, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(s.clientKey(r)) {
			if s.metrics != nil {
				s.metrics.RateLimited.Inc()
			}
			writeError(w, http.StatusTooManyRequests, "요청이 너무 많습니다. 잠시 후 다시 시도해주세요.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
