// Package main runs the launchpad server:
// - HTTP API: token creation, trades, history, graduation state, websocket feed
// - Graduation sweep (scheduled): evaluates every ungraduated token
// - Prometheus metrics on the same listener at /metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"curve-launchpad/internal/api"
	"curve-launchpad/internal/domain"
	"curve-launchpad/internal/graduation"
	"curve-launchpad/internal/ledger"
	"curve-launchpad/internal/pricefeed"
	"curve-launchpad/internal/storage"
	chstore "curve-launchpad/internal/storage/clickhouse"
	"curve-launchpad/internal/storage/memory"
	"curve-launchpad/internal/storage/migrations"
	pgstore "curve-launchpad/internal/storage/postgres"
)

// allStores holds all storage implementations.
type allStores struct {
	tokenStore       storage.TokenStore
	tradeRecordStore storage.TradeRecordStore
	curvePointStore  storage.CurvePointStore // nil when analytics disabled
}

func main() {
	// Load .env file if it exists; system env vars win.
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	httpAddr := flag.String("http-addr", envOr("HTTP_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional, enables curve analytics)")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address (optional, enables display state cache)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	priceFeedURL := flag.String("price-feed-url", os.Getenv("PRICE_FEED_URL"), "SOL/USD price endpoint (optional)")
	priceFallback := flag.Float64("price-fallback", 150, "Fallback SOL/USD price when no feed is reachable")
	priceTTL := flag.Duration("price-ttl", 30*time.Second, "SOL price cache TTL")
	checkInterval := flag.Duration("check-interval", 15*time.Second, "Graduation sweep interval")
	poolProgram := flag.String("pool-program", envOr("POOL_PROGRAM", "launchpad-amm"), "Program name used to derive graduation pool addresses")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Price feed: HTTP with cache when configured, static fallback otherwise.
	fallback := decimal.NewFromFloat(*priceFallback)
	var feed pricefeed.Feed
	if *priceFeedURL != "" {
		upstream := pricefeed.NewHTTPFeed(*priceFeedURL, 10*time.Second)
		feed = pricefeed.NewCachedFeed(upstream, *priceTTL, fallback, logger)
		logger.Printf("SOL price feed: %s (ttl %s, fallback %s USD)", *priceFeedURL, *priceTTL, fallback)
	} else {
		feed = pricefeed.NewStaticFeed(fallback)
		logger.Printf("SOL price feed: static %s USD", fallback)
	}

	// Ledger
	ldgr, err := ledger.New(ledger.Config{
		Tokens: stores.tokenStore,
		Points: stores.curvePointStore,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create ledger: %v", err)
	}

	// Graduation machinery
	evaluator := graduation.NewEvaluator(feed)
	hub := api.NewWSHub(logger)
	go hub.Run()

	coordinator, err := graduation.NewCoordinator(graduation.CoordinatorConfig{
		Tokens:    stores.tokenStore,
		Evaluator: evaluator,
		Handoff:   graduation.NewSimulatedHandoff(*poolProgram),
		Notifier:  &wsNotifier{hub: hub},
		Logger:    logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create coordinator: %v", err)
	}

	// Optional Redis display cache
	var cache *api.DisplayCache
	if *redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		cache = api.NewDisplayCache(rdb, 5*time.Second, logger)
		logger.Printf("Redis display cache enabled at %s", *redisAddr)
	}

	svc := api.NewService(api.ServiceConfig{
		Tokens:      stores.tokenStore,
		Trades:      stores.tradeRecordStore,
		Points:      stores.curvePointStore,
		Ledger:      ldgr,
		ReadModel:   graduation.NewReadModel(stores.tokenStore, stores.tradeRecordStore, evaluator),
		Coordinator: coordinator,
		Cache:       cache,
		Hub:         hub,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:    *httpAddr,
		Handler: svc.Router(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
	}()

	// Graduation sweep loop
	go runSweep(ctx, coordinator, *checkInterval, logger)

	logger.Printf("Listening on %s", *httpAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// runSweep periodically checks every ungraduated token.
func runSweep(ctx context.Context, coordinator *graduation.Coordinator, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, err := coordinator.CheckAll(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("graduation sweep failed: %v", err)
				continue
			}
			if graduated := graduation.GraduatedCount(results); graduated > 0 {
				logger.Printf("graduation sweep migrated %d token(s)", graduated)
			}
		}
	}
}

// createStores builds the storage layer and applies migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *log.Logger) (*allStores, func(), error) {
	if useMemory {
		logger.Println("Using in-memory storage (data will not persist)")
		trades := memory.NewTradeRecordStore()
		stores := &allStores{
			tokenStore:       memory.NewTokenStore(trades),
			tradeRecordStore: trades,
			curvePointStore:  memory.NewCurvePointStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	stores := &allStores{
		tokenStore:       pgstore.NewTokenStore(pool),
		tradeRecordStore: pgstore.NewTradeRecordStore(pool),
	}
	cleanup := func() { pool.Close() }

	// ClickHouse (optional analytics)
	if clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		stores.curvePointStore = chstore.NewCurvePointStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
		logger.Println("ClickHouse curve analytics enabled")
	} else {
		logger.Println("ClickHouse not configured, curve analytics disabled")
	}

	return stores, cleanup, nil
}

// wsNotifier pushes graduation events to websocket subscribers.
type wsNotifier struct {
	hub *api.WSHub
}

func (n *wsNotifier) TokenGraduated(token *domain.Token, poolReference string) {
	n.hub.Broadcast(api.WSMessage{
		Type:          "graduation",
		MintID:        token.MintID,
		PoolReference: poolReference,
	})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
