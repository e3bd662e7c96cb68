package handler

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mockly/internal/metrics"
	ext "mockly/internal/utils/extractor"
	logging "mockly/pkg/logger/pkg"
)

// RequestID reuses the caller's x-request-id or assigns a new one, and puts
// it on the request context for logging.Logger.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(ext.RequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(ext.RequestID, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("clientIP", c.ClientIP()),
		}
		logger := logging.Logger(c.Request.Context())
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("Request failed", fields...)
		case len(c.Errors) > 0:
			logger.Warn("Request rejected", append(fields, zap.String("errors", c.Errors.String()))...)
		default:
			logger.Info("Request served", fields...)
		}
	}
}

func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	EntryTTL          time.Duration
}

type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per owner.
type RateLimiter struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	entries     map[string]*rateLimitEntry
	entryTTL    time.Duration
	lastCleanup time.Time
}

// NewRateLimiter returns nil, which allows everything, when cfg disables limiting.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 || cfg.Burst <= 0 {
		return nil
	}
	ttl := cfg.EntryTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RateLimiter{
		limit:       rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute)),
		burst:       cfg.Burst,
		entries:     make(map[string]*rateLimitEntry),
		entryTTL:    ttl,
		lastCleanup: time.Now(),
	}
}

func (r *RateLimiter) Allow(key string) bool {
	if r == nil || key == "" {
		return true
	}
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastCleanup) >= r.entryTTL {
		for k, entry := range r.entries {
			if now.Sub(entry.lastSeen) > r.entryTTL {
				delete(r.entries, k)
			}
		}
		r.lastCleanup = now
	}

	entry, ok := r.entries[key]
	if !ok {
		entry = &rateLimitEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}
