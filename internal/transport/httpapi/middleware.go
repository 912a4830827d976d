package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/service"
)

const (
	requestIDKey = "request_id"
	actorKey     = "actor"

	headerRequestID     = "X-Request-ID"
	headerActorKind     = "X-Actor-Kind"
	headerActorID       = "X-Actor-ID"
	headerWebhookSecret = "X-Webhook-Secret"
)

// RequestID берёт X-Request-ID клиента или выдаёт новый.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func Logger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		if status >= http.StatusInternalServerError {
			entry.Warn("http request")
			return
		}
		entry.Info("http request")
	}
}

// RateLimiter — отдельный token bucket на каждый IP.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	idle  time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
		visitors: make(map[string]*visitor),
	}
}

func (rl *RateLimiter) limiter(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, found := rl.visitors[ip]
	if !found {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Cleanup раз в interval забывает IP, не появлявшиеся дольше idle. Блокирует до отмены ctx.
func (rl *RateLimiter) Cleanup(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if now.Sub(v.lastSeen) > rl.idle {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter(c.ClientIP(), time.Now()).Allow() {
			fail(c, http.StatusTooManyRequests, apperr.KindValidation, "too many requests")
			return
		}
		c.Next()
	}
}

// Actor читает личность из заголовков, которые выставляет доверенный шлюз.
// Проверку роли делает requireActor в обработчике.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := model.ActorKind(strings.ToUpper(strings.TrimSpace(c.GetHeader(headerActorKind))))
		switch kind {
		case model.ActorTraveler, model.ActorGuide, model.ActorAdmin:
		case "":
			c.Next()
			return
		default:
			fail(c, http.StatusUnauthorized, apperr.KindForbidden, "unknown actor kind")
			return
		}

		actor := service.Actor{Kind: kind}
		if raw := strings.TrimSpace(c.GetHeader(headerActorID)); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				fail(c, http.StatusUnauthorized, apperr.KindForbidden, "actor id is not a uuid")
				return
			}
			actor.ID = id
		}
		if actor.ID == uuid.Nil && kind != model.ActorAdmin {
			fail(c, http.StatusUnauthorized, apperr.KindForbidden, "actor id is required")
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func requireActor(c *gin.Context, allowed ...model.ActorKind) (service.Actor, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		fail(c, http.StatusUnauthorized, apperr.KindForbidden, "actor headers are missing")
		return service.Actor{}, false
	}
	actor := v.(service.Actor)
	for _, k := range allowed {
		if actor.Kind == k {
			return actor, true
		}
	}
	fail(c, http.StatusForbidden, apperr.KindForbidden, string(actor.Kind)+" may not call this endpoint")
	return service.Actor{}, false
}

// WebhookSecret сверяет общий секрет шлюза. Пустой секрет отключает проверку.
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(headerWebhookSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			fail(c, http.StatusUnauthorized, apperr.KindForbidden, "invalid webhook secret")
			return
		}
		c.Next()
	}
}
