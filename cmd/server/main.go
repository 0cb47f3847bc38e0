package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dinein-service/config"
	"dinein-service/internal/api"
	"dinein-service/internal/broker"
	"dinein-service/internal/realtime"
	"dinein-service/internal/redisclient"
	"dinein-service/internal/service"
	"dinein-service/internal/store"
	"dinein-service/internal/util"
	"dinein-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting dine-in service")

	tp, err := util.InitTracer(util.TracerOptions{
		Environment:    cfg.Server.Env,
		JaegerEndpoint: cfg.Observ.JaegerEndpoint,
		SampleRatio:    cfg.Observ.TraceSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		log.Fatalf("Failed to migrate database: %v", err)
	}
	migrateCancel()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	hub := realtime.NewHub(redisClient, cfg.Business.RealtimeQueueSize)
	hub.Start()

	settings := service.Settings{
		DefaultTaxRate:            decimal.NewFromFloat(cfg.Business.DefaultTaxRate),
		DefaultServiceChargeRate:  decimal.NewFromFloat(cfg.Business.DefaultServiceChargeRate),
		MinPreparationMinutes:     cfg.Business.MinPreparationMinutes,
		DefaultPreparationMinutes: cfg.Business.DefaultPreparationMinutes,
		BillNumberAttempts:        cfg.Business.BillNumberAttempts,
		MenuCacheTTL:              time.Duration(cfg.Business.MenuCacheTTLSeconds) * time.Second,
	}

	sessionService := service.NewSessionService(db, hub, eventPublisher)
	cartService := service.NewCartService(db, hub)
	orderService := service.NewOrderService(db, hub, eventPublisher, settings)
	paymentService := service.NewPaymentService(db, hub, eventPublisher, settings)
	menuService := service.NewMenuService(db, redisClient, settings)
	feedbackService := service.NewFeedbackService(db)
	qrGenerator := service.NewTableQRGenerator(db, cfg.Server.PublicBaseURL)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	callbackConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPaymentCallbacks, cfg.Kafka.ConsumerGroup)
	callbackWorker := worker.NewPaymentCallbackWorker(callbackConsumer, paymentService, db)
	go func() {
		if err := callbackWorker.Start(workerCtx); err != nil {
			log.Printf("Payment callback worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Deps{
		Sessions: sessionService,
		Carts:    cartService,
		Orders:   orderService,
		Payments: paymentService,
		Menu:     menuService,
		Feedback: feedbackService,
		QR:       qrGenerator,
		Rooms:    redisClient,
		Marks:    redisClient,
		Checks: map[string]func(context.Context) error{
			"postgres": db.Ping,
			"redis":    redisClient.Ping,
		},
	})
	handler.SetupRoutes(router)

	// Cancelled on shutdown so open event streams return.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:     router,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	cancelRequests()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	if err := callbackWorker.Stop(); err != nil {
		log.Printf("Error stopping payment callback worker: %v", err)
	}

	if err := hub.Close(shutdownCtx); err != nil {
		log.Printf("Realtime hub did not drain: %v", err)
	}

	log.Println("Server exited")
}
