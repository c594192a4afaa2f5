package broker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiters holds one rate.Limiter per host, created lazily from the
// host's policy.
type hostLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newHostLimiters() *hostLimiters {
	return &hostLimiters{limiters: make(map[string]*rate.Limiter)}
}

// wait blocks until the host's limiter allows a request or the context is
// canceled.
func (h *hostLimiters) wait(ctx context.Context, host string, rps float64) error {
	if rps <= 0 {
		rps = 0.01
	}
	h.mu.Lock()
	limiter, ok := h.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
		h.limiters[host] = limiter
	}
	h.mu.Unlock()
	return limiter.Wait(ctx)
}
