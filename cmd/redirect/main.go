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
	"shortener/pkg/service"
	"shortener/pkg/storage"
)

// The redirect binary serves only the hot read path so it can be scaled
// independently of the create/analytics API.
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

	var linkCache cache.LinkCacheInterface
	if cfg.RedisURL != "" && cfg.CacheEnabled {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal(err)
		}
		redisClient := redis.NewClient(opt)
		defer redisClient.Close()
		linkCache = cache.NewLinkCache(redisClient)
	}

	generator := service.NewCodeGenerator(store, cfg.CodeLength)
	linkService := service.NewLinkService(store, generator, linkCache, logger, cfg.BaseURL)

	handler := httphandler.NewHandler(linkService)

	r := chi.NewRouter()
	r.Get("/{code}", handler.Redirect)

	log.Printf("Starting redirect server on %s (provider=%s)", cfg.Addr, cfg.DBProvider)
	log.Fatal(stdhttp.ListenAndServe(cfg.Addr, r))
}
