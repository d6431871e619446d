package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dutch-auction-system/internal/api/handlers"
	"dutch-auction-system/internal/config"
	"dutch-auction-system/internal/infrastructure/leader"
	"dutch-auction-system/internal/infrastructure/mysql"
	"dutch-auction-system/internal/infrastructure/redis"
	"dutch-auction-system/internal/infrastructure/websocket"
	"dutch-auction-system/internal/services"
	"dutch-auction-system/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting auction service", "instance_id", cfg.Instance.ID)

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Initialize repositories
	auctionRepo := mysql.NewMySQLAuctionRepository(db)
	outboxRepo := mysql.NewMySQLOutboxRepository(db)
	schedulerRepo := mysql.NewMySQLSchedulerRepository(db)

	// Initialize Redis based components
	stateCache := redis.NewRedisStateCache(rdb)
	outcomeCache := redis.NewRedisOutcomeCache(rdb)
	eventPublisher := redis.NewRedisEventPublisher(rdb)

	// Initialize leader election
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Initialize services; the scheduler needs the auction service and
	// vice versa, so it is attached after construction.
	auctionService := services.NewAuctionService(
		auctionRepo,
		stateCache,
		nil,
		cfg.Auction.BidTolerance,
		cfg.Auction.SaveRetries,
		log,
	)

	scheduler := services.NewCronAuctionScheduler(
		schedulerRepo, auctionService, leaderElection,
		cfg.Instance.ID, cfg.Auction.SchedulerInterval, log)
	auctionService.SetScheduler(scheduler)

	connManager := websocket.NewConnectionManager(log)
	userNotifier := websocket.NewWebSocketNotifier(connManager)

	bidService := services.NewBidService(
		auctionRepo,
		outcomeCache,
		stateCache,
		userNotifier,
		cfg.Auction.SaveRetries,
		log,
	)

	dispatcher := services.NewOutboxDispatcher(
		outboxRepo, eventPublisher, leaderElection,
		cfg.Instance.ID, cfg.Auction.OutboxInterval, cfg.Auction.OutboxBatchSize, log)

	snapshots := services.NewSnapshotService(
		auctionRepo, eventPublisher, leaderElection,
		cfg.Instance.ID, cfg.Auction.SnapshotInterval, log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			echo.GET, echo.HEAD, echo.PUT, echo.PATCH,
			echo.POST, echo.DELETE, echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
	}))

	auctionHandler := handlers.NewAuctionHandler(auctionService, bidService, log)
	auctionHandler.Register(e.Group("/api/v1"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-service",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Start background services
	if err := scheduler.Start(context.Background()); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	if err := dispatcher.Start(context.Background()); err != nil {
		log.Error("Failed to start outbox dispatcher", "error", err)
		os.Exit(1)
	}
	if err := snapshots.Start(context.Background()); err != nil {
		log.Error("Failed to start snapshot service", "error", err)
		os.Exit(1)
	}

	// Keep contending for leadership; the loops above check it per tick.
	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became engine leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting auction service server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	if err := dispatcher.Stop(); err != nil {
		log.Error("Failed to stop outbox dispatcher", "error", err)
	}
	if err := snapshots.Stop(); err != nil {
		log.Error("Failed to stop snapshot service", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(ctx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction service stopped")
}
