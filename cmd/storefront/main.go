package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/circuitbreaker"
	"github.com/fjod/go_cart/storefront/internal/client"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/poller"
	"github.com/fjod/go_cart/storefront/internal/reconcile"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("storefront", "info")
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init("storefront", cfg.LogLevel)

	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	var (
		localStore   kv.Store
		sessionStore kv.Store
	)
	memorySession := kv.NewMemoryStore(notify.RecordTTL)
	defer memorySession.Close()
	sessionStore = memorySession

	switch cfg.Store {
	case config.StoreRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zlog.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis connection failed")
		}
		zlog.Info().Str("addr", cfg.RedisAddr).Msg("redis ping succeeded")
		localStore = kv.NewRedisStore(redisClient, "storefront:cart", 0)
		sessionStore = kv.NewRedisStore(redisClient, "storefront:session:"+cfg.SessionID, notify.RecordTTL)
	case config.StoreMongo:
		db, err := kv.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to connect to MongoDB")
		}
		defer db.Client().Disconnect(context.Background())
		zlog.Info().Str("db", cfg.MongoDBName).Msg("connected to MongoDB")
		mongoStore := kv.NewMongoStore(db)
		if err := mongoStore.CreateIndexes(ctx); err != nil {
			zlog.Warn().Err(err).Msg("failed to create kv indexes")
		}
		localStore = mongoStore
	default:
		memoryLocal := kv.NewMemoryStore(0)
		defer memoryLocal.Close()
		localStore = memoryLocal
	}

	// Notifications
	inbox := notify.NewInbox(0)
	deduper := notify.NewDeduper(sessionStore, inbox)
	go deduper.Run(ctx)

	// Collaborators
	tokens := client.ContextToken{Fallback: client.StaticToken(cfg.Token)}
	cartClient := client.NewCartClient(cfg.CartServiceURL, tokens, cfg.ClientTimeout)
	remote := circuitbreaker.New(cartClient, circuitbreaker.DefaultSettings("remote-cart"))
	discounts := client.NewDiscountClient(cfg.DiscountService, tokens, cfg.ClientTimeout)

	var products reconcile.ProductLookup = client.NewProductClient(cfg.ProductService, cfg.ClientTimeout)
	if cfg.UseCatalog {
		repo, err := catalog.NewRepository(cfg.CatalogPath)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to open catalog")
		}
		defer repo.Close()
		if err := repo.RunMigrations(); err != nil {
			zlog.Fatal().Err(err).Msg("failed to migrate catalog")
		}
		zlog.Info().Str("path", cfg.CatalogPath).Msg("using local catalog")
		products = repo
	}

	local := repository.NewCartRepository(localStore, cfg.UserID)
	rec := reconcile.New(local, remote, products, cartClient, deduper)
	cart := service.NewCartService(rec, local, remote, discounts)
	defer cart.Close()

	if _, err := cart.Load(ctx); err != nil {
		zlog.Warn().Err(err).Msg("initial cart load failed")
	}

	if len(cfg.KafkaBrokers) > 0 {
		p := poller.NewPoller(cart, cfg.UserID, cfg.KafkaTopic, cfg.KafkaGroupID, cfg.KafkaBrokers...)
		defer p.Close()
		go p.Run(ctx)
	}

	cartHandler := h.NewCartHandler(cart, inbox, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.NewRouter(cartHandler, cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info().Str("port", cfg.HTTPPort).Str("session_id", cfg.SessionID).Msg("storefront starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info().Msg("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("server forced to shutdown")
	}
	cancel()

	zlog.Info().Msg("server exited")
}
