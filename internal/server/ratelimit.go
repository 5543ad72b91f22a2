package server

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/helpdesk-rag/internal/logging"
)

// defaultRateLimit is the sustained requests per second allowed per caller
// when no explicit limit is configured.
const defaultRateLimit = 10

// defaultRateBurst is the per-caller burst when none is configured.
const defaultRateBurst = 20

// limiterIdleTTL is how long an unused caller bucket is kept.
const limiterIdleTTL = 5 * time.Minute

// Caller kinds used as the bucket key prefix and the metric label.
const (
	callerAPIKey = "api_key"
	callerIP     = "ip"
)

// callerBucket is one caller's token bucket and when it was last used.
type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces a token-bucket limit per caller. A caller presenting
// an API key is identified by a hash of the key, so one key shares a budget
// across addresses; everyone else is identified by remote IP.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*callerBucket
	rps     rate.Limit
	burst   int
	log     *slog.Logger
	// onLimited, when set, is called with the caller kind of every rejected
	// request.
	onLimited func(kind string)
}

// newRateLimiter constructs a rateLimiter and starts its eviction loop. The
// loop exits when the returned stop function is called.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		buckets: make(map[string]*callerBucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		log:     log,
	}

	stopCh := make(chan struct{})
	go rl.evictLoop(stopCh)

	return rl, func() { close(stopCh) }
}

// callerKey returns the bucket key for r and the caller kind.
func callerKey(r *http.Request) (key, kind string) {
	if k := apiKey(r); k != "" {
		sum := sha256.Sum256([]byte(k))
		return callerAPIKey + ":" + hex.EncodeToString(sum[:8]), callerAPIKey
	}
	return callerIP + ":" + clientIP(r), callerIP
}

func (rl *rateLimiter) bucket(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &callerBucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

func (rl *rateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			rl.evict(time.Now().Add(-limiterIdleTTL))
		}
	}
}

// evict drops buckets not used since cutoff.
func (rl *rateLimiter) evict(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// size returns the number of tracked callers.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// middleware rejects requests over the caller's budget with 429, a JSON error
// body and a Retry-After header in whole seconds.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, kind := callerKey(r)
		res := rl.bucket(key).Reserve()

		if delay := res.Delay(); !res.OK() || delay > 0 {
			res.Cancel()
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("caller", kind),
				slog.String("path", r.URL.Path),
			)
			if rl.onLimited != nil {
				rl.onLimited(kind)
			}
			w.Header().Set("Retry-After", retryAfter(delay))
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfter renders d as a Retry-After value, at least one second.
func retryAfter(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 || d == rate.InfDuration {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// clientIP returns the remote address without its port. X-Forwarded-For is
// not trusted; put the server behind a proxy that rewrites RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
