package handler

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig sets the per-client token buckets. Reads and appends draw
// from separate buckets so a burst of appends cannot starve verification or
// listing. A non-positive RPS disables that class.
type RateLimitConfig struct {
	ReadRPS    float64
	ReadBurst  int
	WriteRPS   float64
	WriteBurst int

	// IdleTTL drops a client's buckets after this long without a request.
	// Defaults to 10 minutes.
	IdleTTL time.Duration
}

const (
	classRead  = "read"
	classWrite = "write"
)

type clientBuckets struct {
	read     *rate.Limiter
	write    *rate.Limiter
	lastSeen time.Time
}

// RateLimiter returns a Gin middleware that enforces the limits in cfg per
// client IP. Requests other than GET, HEAD and OPTIONS count as writes.
// Rejections get 429 with a Retry-After derived from the bucket's refill time.
// The janitor goroutine stops when quit is closed.
func RateLimiter(cfg RateLimitConfig, quit <-chan struct{}) gin.HandlerFunc {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}

	var mu sync.Mutex
	clients := make(map[string]*clientBuckets)

	go func() {
		ticker := time.NewTicker(cfg.IdleTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				mu.Lock()
				for ip, b := range clients {
					if now.Sub(b.lastSeen) > cfg.IdleTTL {
						delete(clients, ip)
					}
				}
				mu.Unlock()
			case <-quit:
				return
			}
		}
	}()

	return func(c *gin.Context) {
		class := requestClass(c.Request.Method)
		rps, burst := cfg.ReadRPS, cfg.ReadBurst
		if class == classWrite {
			rps, burst = cfg.WriteRPS, cfg.WriteBurst
		}
		if rps <= 0 {
			c.Next()
			return
		}

		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		b, ok := clients[ip]
		if !ok {
			b = &clientBuckets{}
			clients[ip] = b
		}
		b.lastSeen = now
		l := b.read
		if class == classWrite {
			l = b.write
		}
		if l == nil {
			l = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
			if class == classWrite {
				b.write = l
			} else {
				b.read = l
			}
		}
		mu.Unlock()

		res := l.ReserveN(now, 1)
		if delay := res.DelayFrom(now); delay > 0 {
			res.CancelAt(now)
			recordRateLimited(class)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": class + " rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func requestClass(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return classRead
	default:
		return classWrite
	}
}
