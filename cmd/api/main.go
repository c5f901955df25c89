package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sentinnell/analytics_api/internal/cache"
	"github.com/sentinnell/analytics_api/internal/config"
	"github.com/sentinnell/analytics_api/internal/database"
	"github.com/sentinnell/analytics_api/internal/handler"
	"github.com/sentinnell/analytics_api/internal/middleware"
	"github.com/sentinnell/analytics_api/internal/repository"
	"github.com/sentinnell/analytics_api/internal/service"
	"github.com/sentinnell/analytics_api/internal/worker"
	"github.com/sentinnell/analytics_api/pkg/shopee"
)

// main is the entrypoint of the product catalog API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Bool("read_only", cfg.DB.ReadOnly).Msg("starting analytics api")

	// 3. Open store
	store, err := database.Open(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DB.Path).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// 3a. Run migrations; read-only deployments ship a migrated file
	if !cfg.DB.ReadOnly {
		if err := store.RunMigrations(context.Background()); err != nil {
			log.Error().Err(err).Msg("migration failed")
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
		log.Info().Msg("migrations completed successfully")
	}

	// 3b. Search cache: Redis when configured, otherwise in-process
	var resultCache cache.ResultCache = cache.NewMemoryCache(cfg.Cache.TTL, time.Now)
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-process cache")
		} else {
			defer redisClient.Close()
			resultCache = cache.NewRedisCache(redisClient, "analytics:", cfg.Cache.TTL)
			log.Info().Msg("redis connected successfully")
		}
	}
	searchCache := cache.NewSearchCache(resultCache)

	// 4. Upstream catalog client (optional)
	var fetcher service.CatalogFetcher
	shopeeClient, err := shopee.NewClient(cfg.Shopee.AppID, cfg.Shopee.Secret,
		shopee.WithBaseURL(cfg.Shopee.BaseURL),
		shopee.WithRatePerMinute(cfg.Shopee.RatePerMinute),
		shopee.WithDebug(cfg.Env == "development"),
	)
	switch {
	case errors.Is(err, shopee.ErrNotConfigured):
		log.Warn().Msg("shopee credentials missing, catalog search disabled")
	case err != nil:
		log.Fatal().Err(err).Msg("shopee client")
	default:
		fetcher = shopeeClient
	}

	// 5. Repositories and services
	productRepo := repository.NewProductRepository(store)
	productSvc := service.NewProductService(productRepo)
	catalogSvc := service.NewCatalogService(fetcher, productRepo, searchCache, cfg.DB.ReadOnly)
	authSvc := service.NewAuthService(cfg.Auth, cfg.JWTSecret)

	// 6. Handlers
	authLimiter := middleware.NewInvalidAuthRateLimiter(5, time.Minute)
	handlers := &Handlers{
		Auth:    handler.NewAuthHandler(authSvc, authLimiter),
		Health:  handler.NewHealthHandler(productSvc, cfg.Env, cfg.DB.ReadOnly, fetcher != nil),
		Product: handler.NewProductHandler(productSvc),
		Catalog: handler.NewCatalogHandler(catalogSvc),
	}

	// 7. Middleware
	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET not set, write routes disabled")
	}
	jwtMw := middleware.NewJWTMiddleware(cfg.JWTSecret, authLimiter)

	// 8. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	// raw catalog records keep large item ids exact
	binding.EnableDecoderUseNumber = true
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, jwtMw)

	// 9. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 10. Start workers
	if cfg.SyncEnabled() && fetcher != nil {
		syncSvc := service.NewSyncService(fetcher, productRepo, cfg.Worker.SyncLimit, cfg.Worker.SyncConcurrency)
		go worker.NewSyncWorker(syncSvc, cfg.Worker.SyncKeywords, cfg.Worker.SyncInterval).Start(ctx)
	}

	// 11. Start HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 12. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 13. Cancel context to stop workers
	cancel()

	// 14. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Auth    *handler.AuthHandler
	Health  *handler.HealthHandler
	Product *handler.ProductHandler
	Catalog *handler.CatalogHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware) {
	api := router.Group("/api")
	api.GET("/health", handlers.Health.GetHealth)
	api.GET("/products", handlers.Product.GetProducts)
	api.GET("/products/search", handlers.Product.SearchProducts)
	api.POST("/search", handlers.Catalog.Search)
	api.POST("/auth/login", handlers.Auth.Login)

	// curation writes
	write := api.Group("")
	write.Use(jwtMiddleware.Handle())
	write.POST("/products", handlers.Catalog.SaveProduct)
	write.POST("/update-categories", handlers.Catalog.UpdateCategories)
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
