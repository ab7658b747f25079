package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"auction-engine/internal/auth"
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/metrics"
	"auction-engine/services/bidding/handler"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	})
}

// MetricsMiddleware records request counts and latencies per route template
func MetricsMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next()

	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	status := strconv.Itoa(c.Writer.Status())
	metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
}

// RequireAuth validates the bearer token and stores its claims on the context. Event streams may
// pass the token as the access_token query parameter since browsers cannot set headers on them.
func RequireAuth(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		claims, err := jwtManager.Validate(token)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		c.Set(helpers.ClaimsKey, claims)
		c.Next()
	}
}

// EnsureUser mirrors a first-time caller into the user store so they can sell and bid
func EnsureUser(service handler.BiddingServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := helpers.CurrentUser(c)
		if !ok {
			abortUnauthorized(c, auth.ErrMissingToken)
			return
		}

		_, err := service.GetProfile(c.Request.Context(), claims.UserID)
		if errors.Is(err, biddingerrors.ErrUserNotFound) {
			_, err = service.SyncProfile(c.Request.Context(), claims.Identity(), time.Now().UTC())
		}
		if err != nil {
			status, message := helpers.MapErrorToHTTP(err)
			utils.JSONError(c, status, err, message)
			utils.Error("EnsureUser: failed to load caller", map[string]any{"user_id": claims.UserID, "error": err.Error()})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole rejects callers whose token does not grant role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := helpers.CurrentUser(c)
		if !ok {
			abortUnauthorized(c, auth.ErrMissingToken)
			return
		}
		if !claims.HasRole(role) {
			err := fmt.Errorf("%w: role %s required", biddingerrors.ErrForbidden, role)
			utils.JSONError(c, http.StatusForbidden, err, "forbidden")
			utils.Warn("RequireRole: access denied", map[string]any{"user_id": claims.UserID, "role": role})
			c.Abort()
			return
		}
		c.Next()
	}
}

// BidRateLimiter is a token bucket per authenticated user
type BidRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	perSecond rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
}

type bucket struct {
	lim *rate.Limiter
	ts  time.Time
}

func NewBidRateLimiter(perSecond float64, burst int) *BidRateLimiter {
	return &BidRateLimiter{
		buckets:   make(map[string]*bucket),
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		ttl:       5 * time.Minute,
		lastSweep: time.Now(),
	}
}

// Allow reports whether key may proceed now
func (l *BidRateLimiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.ts) > l.ttl {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[key] = b
	}
	b.ts = now
	return b.lim.AllowN(now, 1)
}

// Middleware rejects callers that exceed their budget with 429
func (l *BidRateLimiter) Middleware(c *gin.Context) {
	key := c.ClientIP()
	if claims, ok := helpers.CurrentUser(c); ok {
		key = claims.UserID
	}

	if !l.Allow(key) {
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"status":  http.StatusTooManyRequests,
			"message": "too many bids, slow down",
			"reason":  "RATE_LIMITED",
		})
		utils.Warn("BidRateLimiter: request throttled", map[string]any{"key": key})
		return
	}
	c.Next()
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query("access_token"); token != "" && strings.HasPrefix(c.FullPath(), "/events/") {
			return token, nil
		}
		return "", auth.ErrMissingToken
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", auth.ErrInvalidToken
	}
	return parts[1], nil
}

func abortUnauthorized(c *gin.Context, err error) {
	wrapped := fmt.Errorf("%w: %v", biddingerrors.ErrUnauthorized, err)
	utils.JSONError(c, http.StatusUnauthorized, wrapped, "authentication required")
	c.Abort()
}
