package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dutch-auction-system/internal/api/handlers"
	apimiddleware "dutch-auction-system/internal/api/middleware"
	"dutch-auction-system/internal/config"
	"dutch-auction-system/internal/infrastructure/mysql"
	"dutch-auction-system/internal/infrastructure/redis"
	"dutch-auction-system/internal/infrastructure/websocket"
	"dutch-auction-system/internal/services"
	"dutch-auction-system/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
)

// The bidding service is the realtime edge: it terminates websocket
// connections, forwards bids into the engine and relays the event
// stream published by the auction service back to viewers.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting bidding service", "instance_id", cfg.Instance.ID)

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

	auctionRepo := mysql.NewMySQLAuctionRepository(db)
	stateCache := redis.NewRedisStateCache(rdb)
	outcomeCache := redis.NewRedisOutcomeCache(rdb)

	connManager := websocket.NewConnectionManager(log)
	userNotifier := websocket.NewWebSocketNotifier(connManager)

	// The bidding service accepts bids too, through the same aggregate
	// and compare-and-swap save as the REST API.
	bidService := services.NewBidService(
		auctionRepo,
		outcomeCache,
		stateCache,
		userNotifier,
		cfg.Auction.SaveRetries,
		log,
	)

	auctionService := services.NewAuctionService(
		auctionRepo,
		stateCache,
		nil,
		cfg.Auction.BidTolerance,
		cfg.Auction.SaveRetries,
		log,
	)

	wsHandlers := handlers.NewWebSocketHandlers(bidService, auctionService, connManager, log)

	// Relay committed auction events to connected viewers.
	subscriber := redis.NewRedisEventSubscriber(rdb, log)
	listener := services.NewEventListener(connManager, userNotifier, log)

	listenerCtx, stopListener := context.WithCancel(context.Background())
	defer stopListener()
	go func() {
		if err := listener.Start(listenerCtx, subscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	router := mux.NewRouter()
	router.Use(apimiddleware.CORS)

	router.HandleFunc("/ws/auction/{auctionID}", wsHandlers.HandleConnection)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "ok",
			"service":   "bidding-service",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}).Methods(http.MethodGet)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("Starting bidding service server", "address", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding service...")
	stopListener()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Bidding service stopped")
}
