package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"schooldir/internal/config"
	"schooldir/pkg/utils"
)

const (
	DefaultRequests = 20 // steady state rate (token refill speed)
	BurstSize       = 50 // bucket size for traffic spikes

	VisitorTTL      = 5 * time.Minute // inactive IPs are forgotten after this
	CleanupInterval = 3 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces request quotas per client IP.
type RateLimiter struct {
	enabled bool
	limit   rate.Limit
	burst   int
	proxies utils.TrustedProxies

	mu       sync.Mutex
	visitors map[string]*visitor

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter builds a limiter from config and starts its cleanup
// routine. Clients are keyed by IP; forwarding headers count only from
// proxies. Call Stop to release it.
func NewRateLimiter(conf config.RateLimitConfig, proxies utils.TrustedProxies) *RateLimiter {
	window := conf.Window
	if window <= 0 {
		window = time.Second
	}
	requests := conf.Requests
	if requests <= 0 {
		requests = DefaultRequests
	}
	burst := conf.Burst
	if burst <= 0 {
		burst = BurstSize
	}

	rl := &RateLimiter{
		enabled:  conf.Enabled,
		limit:    rate.Limit(float64(requests) / window.Seconds()),
		burst:    burst,
		proxies:  proxies,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
	if rl.enabled {
		go rl.cleanupLoop()
	}
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// cleanupLoop removes stale visitor entries so the map does not grow
// without bound.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > VisitorTTL {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Middleware blocks excessive requests with a 429 envelope.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.enabled {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.getVisitor(utils.GetRealIP(r, rl.proxies)).Allow() {
			w.Header().Set("Retry-After", "1")
			utils.WriteError(
				w,
				http.StatusTooManyRequests,
				utils.ErrRequestRateLimitExceeded,
				"Too many requests. Please wait a moment.",
			)
			return
		}

		next.ServeHTTP(w, r)
	})
}
