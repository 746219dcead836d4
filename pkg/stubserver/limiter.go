package stubserver

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// Poll clients call every couple of seconds per open conversation; the
// limits below leave generous headroom for a handful of open screens while
// still catching runaway loops.
const (
	limiterRPS   = 25
	limiterBurst = 50
)

type limiterPool struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func newLimiterPool() *limiterPool {
	return &limiterPool{m: make(map[string]*rate.Limiter)}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(limiterRPS), limiterBurst)
	p.m[key] = l
	return l
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// rateLimit throttles per bearer token.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiters.Allow(senderID(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
