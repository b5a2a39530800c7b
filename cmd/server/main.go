package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wholesale_catalog/internal/config"
	"wholesale_catalog/internal/images"
	"wholesale_catalog/internal/metrics"
	"wholesale_catalog/internal/middleware"
	"wholesale_catalog/internal/queue"
	"wholesale_catalog/internal/repository"
	"wholesale_catalog/internal/router"
	"wholesale_catalog/internal/store"
	"wholesale_catalog/pkg/logger"
	rediskey "wholesale_catalog/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		Output:     cfg.LogOutput,
		FilePath:   cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 7,
		MaxAgeDays: 30,
	}); err != nil {
		log.Fatalf("init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. SQLite: open and bring the schema up to date
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal(ctx, "open database", "path", cfg.DBPath, "error", err)
	}
	if err := store.Migrate(ctx, db); err != nil {
		logger.Fatal(ctx, "migrate database", "error", err)
	}

	// 2. Redis: sessions, rate limits, checkout claims, order outbox
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn(ctx, "redis not reachable at startup", "addr", cfg.RedisAddr, "error", err)
	}
	cancel()

	imgs, err := images.NewDiskManager(cfg.UploadDir)
	if err != nil {
		logger.Fatal(ctx, "image folder", "error", err)
	}
	m := metrics.New()

	deps := router.Deps{
		Config:   cfg,
		Products: repository.NewProductRepository(db),
		Orders:   repository.NewOrderRepository(db),
		Images:   imgs,
		Sessions: rediskey.NewSessionStore(rdb, cfg.SessionTTL),
		Redis:    rdb,
		Metrics:  m,
	}

	// 3. Order events: stream outbox relayed to Kafka
	if cfg.EventsEnabled {
		deps.Outbox = queue.NewOutbox(rdb, cfg.OrderEventStream)
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		relay := queue.NewRelay(rdb, producer, cfg.OrderEventStream, cfg.OrderEventGroup, cfg.OrderEventConsumer)
		go relay.Run(ctx)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	r.Use(middleware.Recovery(), middleware.RequestLogger(m))
	router.Setup(r, deps)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	go func() {
		logger.Info(ctx, "http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "http server", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http shutdown", "error", err)
	}
}
