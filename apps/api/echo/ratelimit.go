package echoapi

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// rateLimiter is a process-wide client-IP request counter with a fixed
// window reset. It is an approximate guard, not a security boundary; its
// lifecycle is owned by the server (started at setup, stopped on shutdown).
type rateLimiter struct {
	mutex  sync.Mutex
	counts map[string]int
	max    int

	ticker *time.Ticker
	done   chan struct{}
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		counts: make(map[string]int),
		max:    max,
		ticker: time.NewTicker(window),
		done:   make(chan struct{}),
	}
	go rl.resetLoop()
	return rl
}

func (rl *rateLimiter) resetLoop() {
	for {
		select {
		case <-rl.ticker.C:
			rl.mutex.Lock()
			rl.counts = make(map[string]int)
			rl.mutex.Unlock()
		case <-rl.done:
			return
		}
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.counts[key]++
	return rl.counts[key] <= rl.max
}

func (rl *rateLimiter) stop() {
	rl.ticker.Stop()
	select {
	case <-rl.done:
	default:
		close(rl.done)
	}
}

func (rl *rateLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !rl.allow(ctx.RealIP()) {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}
