package main

import (
	"context"
	"log"
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"shortener/pkg/cache"
	"shortener/pkg/config"
	httphandler "shortener/pkg/http"
	"shortener/pkg/logging"
	"shortener/pkg/middleware"
	"shortener/pkg/service"
	"shortener/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(logging.LogLevel(cfg.LogLevel))

	ctx := context.Background()
	store, closeStore, err := storage.Open(ctx, storage.Config{
		Provider:      cfg.DBProvider,
		DSN:           cfg.DatabaseURL,
		MongoDatabase: cfg.MongoDatabase,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()

	// Redis for the resolve cache and rate limiter, when configured.
	var linkCache cache.LinkCacheInterface
	var rateLimit func(stdhttp.Handler) stdhttp.Handler
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal(err)
		}
		redisClient := redis.NewClient(opt)
		defer redisClient.Close()

		if cfg.CacheEnabled {
			linkCache = cache.NewLinkCache(redisClient)
		}
		if cfg.RateLimitEnabled {
			limiter := middleware.NewRateLimiter(redisClient, cfg.RateLimitPerMin, cfg.RateLimitWindow)
			rateLimit = limiter.Limit
		}
	}

	generator := service.NewCodeGenerator(store, cfg.CodeLength)
	linkService := service.NewLinkService(store, generator, linkCache, logger, cfg.BaseURL)

	handler := httphandler.NewHandler(linkService)

	r := chi.NewRouter()
	httphandler.SetupRoutes(r, handler, rateLimit)

	log.Printf("Starting API server on %s (provider=%s)", cfg.Addr, cfg.DBProvider)
	log.Fatal(stdhttp.ListenAndServe(cfg.Addr, r))
}
