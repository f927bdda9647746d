package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/config"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/api"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/broker"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/redisclient"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/service"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/settings"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/store"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/util"
	"github.com/celizamariecruz-svg/CallowayPharmacy-sub003/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting pharmacy POS service", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer("pharmacy-pos", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Migrations applied")
	}

	readiness := map[string]api.Pinger{"database": db}

	var (
		cache  settings.Cache
		locker service.Locker
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected")

		cache = redisClient
		locker = redisClient
		readiness["redis"] = redisClient
	}

	var publisher service.EventPublisher
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPOS)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicPOS))
	}

	policies := settings.NewProvider(db, cache, cfg.Business)

	rewardIssuer := service.NewRewardIssuer(db, policies, publisher)
	saleService := service.NewSaleService(db, policies,
		rewardIssuer,
		service.NewActivityHook(db),
		service.NewEventHook(publisher),
	)
	orderService := service.NewOrderService(db, policies, publisher)
	purchaseService := service.NewPurchaseService(db)
	reclaimer := service.NewReclaimer(db, policies, locker, publisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	reclaimWorker := worker.NewReclaimWorker(reclaimer, cfg.Business.ReclaimInterval)
	go func() {
		if err := reclaimWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Reclaim worker error", zap.Error(err))
		}
	}()

	var receivingWorker *worker.ReceivingWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPurchaseOrder, cfg.Kafka.ConsumerGroup)
		receivingWorker = worker.NewReceivingWorker(consumer, purchaseService)
		go func() {
			if err := receivingWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Receiving worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Sales:     saleService,
		Rewards:   rewardIssuer,
		Orders:    orderService,
		Purchases: purchaseService,
		Reclaimer: reclaimer,
		Settings:  policies,
	}, cfg.Server.PrincipalHeader, readiness)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	var metricsSrv *http.Server
	if cfg.Observ.PrometheusPort != "" && cfg.Observ.PrometheusPort != cfg.Server.Port {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.Observ.PrometheusPort),
			Handler: mux,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server error", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	workerCancel()
	reclaimWorker.Stop()
	if receivingWorker != nil {
		if err := receivingWorker.Stop(); err != nil {
			logger.Warn("Error closing consumer", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
