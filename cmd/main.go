package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Leganyst/tour-marketplace/internal/config"
	"github.com/Leganyst/tour-marketplace/internal/db"
	"github.com/Leganyst/tour-marketplace/internal/gateway"
	"github.com/Leganyst/tour-marketplace/internal/logging"
	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/notify"
	"github.com/Leganyst/tour-marketplace/internal/service"
	"github.com/Leganyst/tour-marketplace/internal/transport/grpcapi"
	"github.com/Leganyst/tour-marketplace/internal/transport/httpapi"
)

func main() {
	// .env необязателен: в контейнере всё приходит из окружения.
	_ = godotenv.Load()

	// 1. Конфиги.
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		logrus.Fatalf("load db config: %v", err)
	}
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		logrus.Fatalf("load app config: %v", err)
	}
	log := logging.New(appCfg.Environment, appCfg.LogLevel)

	// 2. БД и миграции.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		log.Fatalf("init db: %v", err)
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("sql DB: %v", err)
	}
	defer sqlDB.Close()

	// 3. Уведомления: лог всегда, Redis при наличии REDIS_ADDR.
	notifiers := notify.Multi{notify.NewLogNotifier(log)}
	var redisNotifier *notify.RedisNotifier
	if appCfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     appCfg.RedisAddr,
			Password: appCfg.RedisPassword,
			DB:       appCfg.RedisDB,
		})
		defer rdb.Close()
		redisNotifier = notify.NewRedisNotifier(rdb, appCfg.NotifyChannel, appCfg.NotifyBuffer, log)
		notifiers = append(notifiers, redisNotifier)
	}

	// 4. Платёжный шлюз.
	var gw gateway.Gateway
	switch appCfg.GatewayKind {
	case "http":
		gw = gateway.NewHTTPGateway("provider", appCfg.GatewayURL, appCfg.GatewayAPIKey)
	default:
		gw = gateway.NewSandbox(appCfg.GatewayURL)
	}

	// 5. Сервисы ядра.
	deps := service.NewDeps(gormDB, appCfg.Settings, notifiers, log)
	catalogSvc := service.NewCatalogService(deps)
	availabilitySvc := service.NewAvailabilityService(deps)
	bookingSvc := service.NewBookingService(deps)
	paymentSvc := service.NewPaymentService(deps, gw, appCfg.GatewayTimeout)
	payoutSvc := service.NewPayoutService(deps)

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	sweeper := service.NewSweeper(deps, bookingSvc, appCfg.PaymentWindow, appCfg.SweepInterval)
	go sweeper.Run(ctx)

	// 6. gRPC.
	grpcServer, health := grpcapi.New(grpcapi.Services{
		Bookings: bookingSvc,
		Payments: paymentSvc,
		Payouts:  payoutSvc,
	}, log)

	lis, err := net.Listen("tcp", appCfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", appCfg.GRPCAddr, err)
	}
	go func() {
		log.WithField("addr", appCfg.GRPCAddr).Info("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	// 7. HTTP.
	router, limiter := httpapi.NewRouter(httpapi.RouterConfig{
		Production:     appCfg.IsProduction(),
		CORSOrigins:    appCfg.CORSOrigins,
		WebhookSecret:  appCfg.WebhookSecret,
		RateLimitRPS:   appCfg.RateLimitRPS,
		RateLimitBurst: appCfg.RateLimitBurst,
	}, httpapi.Services{
		Catalog:      catalogSvc,
		Availability: availabilitySvc,
		Bookings:     bookingSvc,
		Payments:     paymentSvc,
		Payouts:      payoutSvc,
	}, log)
	go limiter.Cleanup(ctx, time.Minute)

	httpServer := &http.Server{
		Addr:              appCfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.WithField("addr", appCfg.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	// 8. Грейсфул-шатдаун по сигналу.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	health.SetServingStatus(grpcapi.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	grpcServer.GracefulStop()
	if redisNotifier != nil {
		if err := redisNotifier.Close(shutdownCtx); err != nil {
			log.WithError(err).Warn("flush notifications")
		}
	}
	log.WithFields(logrus.Fields{"grpc": appCfg.GRPCAddr, "http": appCfg.HTTPAddr}).Info("stopped")
}
