package httpx

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/dcm/pkg/slogx"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// maxPeekBytes bounds how much of a request body a key extractor will buffer.
const maxPeekBytes = 64 << 10

// sweepEvery is how often idle buckets are dropped.
const sweepEvery = time.Minute

// RateLimit is a token bucket: Requests per Window on average, with up to
// Burst available at once. The tags let it be loaded as part of a cleanenv
// config under a profile prefix.
type RateLimit struct {
	Requests int           `yaml:"requests" json:"requests" env:"REQUESTS"`
	Window   time.Duration `yaml:"window" json:"window" env:"WINDOW"`
	Burst    int           `yaml:"burst" json:"burst" env:"BURST"`
}

func (l RateLimit) Validate() error {
	if l.Requests <= 0 || l.Window <= 0 || l.Burst <= 0 {
		return fmt.Errorf("requests, window and burst must be positive (got %d per %s, burst %d)",
			l.Requests, l.Window, l.Burst)
	}
	return nil
}

func (l RateLimit) every() rate.Limit {
	return rate.Limit(float64(l.Requests) / l.Window.Seconds())
}

// RateLimits groups the profiles routes are assigned to.
type RateLimits struct {
	// Strict guards password checks.
	Strict RateLimit `yaml:"strict" json:"strict" env-prefix:"STRICT_"`
	// Moderate guards writes to the users file.
	Moderate RateLimit `yaml:"moderate" json:"moderate" env-prefix:"MODERATE_"`
	// Lenient covers reads and exports.
	Lenient RateLimit `yaml:"lenient" json:"lenient" env-prefix:"LENIENT_"`
	// Public covers health and metrics, which monitors poll often.
	Public RateLimit `yaml:"public" json:"public" env-prefix:"PUBLIC_"`
}

func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   RateLimit{Requests: 5, Window: time.Minute, Burst: 5},
		Moderate: RateLimit{Requests: 20, Window: time.Minute, Burst: 20},
		Lenient:  RateLimit{Requests: 100, Window: time.Minute, Burst: 100},
		Public:   RateLimit{Requests: 1000, Window: time.Minute, Burst: 1000},
	}
}

func (ls RateLimits) Validate() error {
	for name, l := range map[string]RateLimit{
		"strict":   ls.Strict,
		"moderate": ls.Moderate,
		"lenient":  ls.Lenient,
		"public":   ls.Public,
	} {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("rate limit %s: %w", name, err)
		}
	}
	return nil
}

// KeyExtractor picks the bucket a request is counted against. An empty key
// means the request is not limited.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor returns the host part of RemoteAddr. Forwarding headers are
// ignored, since any client can set them.
func IPKeyExtractor(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedIPKeyExtractor prefers the first X-Forwarded-For hop, then
// X-Real-IP, then RemoteAddr. Use it only behind a proxy that overwrites
// those headers.
func ForwardedIPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return IPKeyExtractor(r)
}

// ClientIP picks the address extractor for the deployment.
func ClientIP(trustProxy bool) KeyExtractor {
	if trustProxy {
		return ForwardedIPKeyExtractor
	}
	return IPKeyExtractor
}

// CompositeKeyExtractor joins the non-empty keys of extractors with sep, so
// CompositeKeyExtractor(":", IPKeyExtractor, JSONFieldKeyExtractor("0"))
// yields "192.168.1.1:alice".
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if key := extract(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// JSONFieldKeyExtractor reads a string from the JSON request body at a gjson
// path ("0" is the first element of an array body, "username" a top level
// field). The body is restored so the handler can still read it.
func JSONFieldKeyExtractor(path string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil || r.Body == http.NoBody {
			return ""
		}

		orig := r.Body
		body, err := io.ReadAll(io.LimitReader(orig, maxPeekBytes))
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), orig), orig}
		if err != nil || !gjson.ValidBytes(body) {
			return ""
		}

		res := gjson.GetBytes(body, path)
		if res.Type != gjson.String {
			return ""
		}
		return res.Str
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key. Buckets that have been idle long
// enough to refill completely are dropped.
type Limiter struct {
	Name  string
	Limit RateLimit
	Key   KeyExtractor

	// OnReject, if set, is called for every request answered with 429.
	OnReject func(r *http.Request)

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func NewLimiter(name string, limit RateLimit, key KeyExtractor) *Limiter {
	return &Limiter{
		Name:      name,
		Limit:     limit,
		Key:       key,
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

// Allow takes a token for key. When none is left it reports how long until
// the next one.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= sweepEvery {
		l.sweep(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.Limit.every(), l.Limit.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	r := b.lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweep drops buckets idle for longer than a full refill takes.
func (l *Limiter) sweep(now time.Time) {
	l.lastSweep = now
	refill := time.Duration(float64(l.Limit.Burst) / float64(l.Limit.every()) * float64(time.Second))
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > refill {
			delete(l.buckets, key)
		}
	}
}

// Len is the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. Requests whose key cannot be extracted pass through.
func (l *Limiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := l.Key(r)
			if key == "" {
				slogx.FromContext(r.Context()).Warn("rate limit: no key for request, allowing",
					"limit", l.Name)
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := l.Allow(key)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(int(wait.Round(time.Second)/time.Second), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Limit.Requests))
			w.Header().Set("X-RateLimit-Window", l.Limit.Window.String())

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"limit", l.Name,
				"key", key,
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)
			if l.OnReject != nil {
				l.OnReject(r)
			}

			WriteError(w, http.StatusTooManyRequests,
				"rate_limit_exceeded", "Too many requests. Please try again later.")
		})
	}
}

// RateLimitByIP limits each client address, as picked by ip.
func RateLimitByIP(name string, limit RateLimit, ip KeyExtractor) *Limiter {
	return NewLimiter(name, limit, ip)
}

// RateLimitByIPAndJSONField limits each client address and body field pair,
// e.g. login attempts per username.
func RateLimitByIPAndJSONField(name string, limit RateLimit, ip KeyExtractor, path string) *Limiter {
	return NewLimiter(name, limit, CompositeKeyExtractor(":",
		ip,
		JSONFieldKeyExtractor(path),
	))
}
