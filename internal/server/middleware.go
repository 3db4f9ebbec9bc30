package server

import (
	"bytes"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	catalogCacheTTL = 5 * time.Minute
	limiterIdleTTL  = 10 * time.Minute
)

// ipRateLimiter keeps a token bucket per client IP. Idle buckets expire.
type ipRateLimiter struct {
	limiters *cache.Cache
	r        rate.Limit
	b        int
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		limiters: cache.New(limiterIdleTTL, limiterIdleTTL),
		r:        limit,
		b:        burst,
	}
}

func (i *ipRateLimiter) limiter(ip string) *rate.Limiter {
	if l, ok := i.limiters.Get(ip); ok {
		i.limiters.SetDefault(ip, l)
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(i.r, i.b)
	if err := i.limiters.Add(ip, l, cache.DefaultExpiration); err != nil {
		// Another request created it first.
		if existing, ok := i.limiters.Get(ip); ok {
			return existing.(*rate.Limiter)
		}
	}
	return l
}

// rateLimitMiddleware answers 429 once a client exceeds its budget. It runs after middleware.RealIP.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
		if !s.limiter.limiter(ip).Allow() {
			rateLimitedTotal.Inc()
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

// cacheResponses serves identical GET responses from memory. Only use it on
// routes whose output does not depend on the caller.
func (s *Server) cacheResponses(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		key := r.URL.RequestURI()
		if hit, ok := s.responses.Get(key); ok {
			cached := hit.(cachedResponse)
			for k, v := range cached.headers {
				w.Header()[k] = v
			}
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(cached.status)
			_, _ = w.Write(cached.body)
			return
		}

		var body bytes.Buffer
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(&body)
		next.ServeHTTP(ww, r)

		if ww.Status() >= 200 && ww.Status() < 300 {
			s.responses.SetDefault(key, cachedResponse{
				status:  ww.Status(),
				headers: ww.Header().Clone(),
				body:    bytes.Clone(body.Bytes()),
			})
		}
	})
}
