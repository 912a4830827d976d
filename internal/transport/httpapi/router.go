// Package httpapi реализует REST-поверхность ядра на gin для веб-клиентов и вебхуков шлюза.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Leganyst/tour-marketplace/internal/service"
)

type Services struct {
	Catalog      *service.CatalogService
	Availability *service.AvailabilityService
	Bookings     *service.BookingService
	Payments     *service.PaymentService
	Payouts      *service.PayoutService
}

type RouterConfig struct {
	Production     bool
	CORSOrigins    []string
	WebhookSecret  string
	RateLimitRPS   float64
	RateLimitBurst int
}

type api struct {
	svc Services
	log logrus.FieldLogger
	now func() time.Time
}

// NewRouter собирает gin.Engine. Лимитер возвращается наружу, чтобы main
// запустил его Cleanup рядом с остальными фоновыми задачами.
func NewRouter(cfg RouterConfig, svc Services, log logrus.FieldLogger) (*gin.Engine, *RateLimiter) {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", headerRequestID, headerActorKind, headerActorID},
		ExposeHeaders:    []string{"Content-Length", headerRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(RequestID())
	r.Use(Logger(log))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "tour-marketplace"})
	})

	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	h := &api{svc: svc, log: log, now: func() time.Time { return time.Now().UTC() }}

	v1 := r.Group("/api/v1")
	// Вебхук шлюза идёт мимо лимитера и заголовков актора.
	v1.POST("/payments/webhook", WebhookSecret(cfg.WebhookSecret), h.gatewayWebhook)

	pub := v1.Group("")
	pub.Use(limiter.Middleware(), Actor())
	{
		pub.GET("/tours", h.listTours)
		pub.POST("/tours", h.createTour)
		pub.PATCH("/tours/:id/active", h.setTourActive)
		pub.GET("/guides/:id/tours", h.listGuideTours)
		pub.GET("/guides/:id/schedules", h.listGuideSchedules)

		pub.GET("/tours/:id/slots", h.listSlots)
		pub.GET("/slots/:id", h.getSlot)
		pub.POST("/slots", h.createSlot)
		pub.PATCH("/slots/:id/availability", h.setAvailability)
		pub.POST("/schedules", h.createSchedule)

		pub.POST("/bookings", h.createBooking)
		pub.GET("/bookings", h.listBookings)
		pub.GET("/bookings/:id", h.getBooking)
		pub.GET("/bookings/:id/history", h.bookingHistory)
		pub.GET("/bookings/:id/cancellation-quote", h.quoteCancellation)
		pub.POST("/bookings/:id/cancel", h.cancelBooking)
		pub.POST("/bookings/:id/decline", h.declineBooking)
		pub.POST("/bookings/:id/complete", h.completeBooking)
		pub.POST("/bookings/:id/payments", h.retryPayment)

		pub.POST("/payments/:id/initiate", h.initiatePayment)
		pub.POST("/payments/:id/refund", h.requestRefund)
		pub.POST("/payments/:id/refund/approve", h.approveRefund)
		pub.POST("/payments/:id/refund/reject", h.rejectRefund)

		pub.GET("/balance", h.getBalance)
		pub.POST("/payouts", h.requestPayout)
		pub.GET("/payouts", h.listPayouts)
		pub.POST("/payouts/:id/cancel", h.cancelPayout)
		pub.POST("/payouts/:id/processing", h.startPayoutProcessing)
		pub.POST("/payouts/:id/process", h.processPayout)
		pub.POST("/payouts/:id/fail", h.failPayout)
	}

	return r, limiter
}
