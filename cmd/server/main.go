/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Load configuration (config package: flags over env defaults)
  2. Initialize SQLite store
  3. Wire the optional cache and catalog ports
  4. Create the use-case service and API handler
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION (see config.Load; flags win over the matching env var):
  -port          / CREDITENGINE_PORT        HTTP server port (default: 8080)
  -db            / CREDITENGINE_DB          SQLite DSN (default: credits.db)
                 Use ":memory:" for an in-memory database
  -redis-addr    / CREDITENGINE_REDIS_ADDR  Redis address (empty disables it)
  -catalog-url   / CREDITENGINE_CATALOG_URL Catalog base URL (empty disables it)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database and cache connections
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - usecase/service.go: Use-case wiring
  - store/sqlite/sqlite.go: Database implementation
*/
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

	"github.com/redis/go-redis/v9"

	"github.com/prepaid/creditengine/api"
	"github.com/prepaid/creditengine/cache"
	"github.com/prepaid/creditengine/catalog"
	"github.com/prepaid/creditengine/config"
	"github.com/prepaid/creditengine/store/sqlite"
	"github.com/prepaid/creditengine/usecase"
)

func main() {
	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store, err := sqlite.New(cfg.DSN)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer store.Close()

	var invalidator cache.Invalidator = cache.NoopInvalidator{}
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		invalidator = cache.NewRedisInvalidator(redisClient)
	}

	var serviceCatalog catalog.ServiceCatalog = catalog.AlwaysActive{}
	if cfg.CatalogURL != "" {
		serviceCatalog = catalog.NewHTTPCatalog(cfg.CatalogURL, nil)
	}

	service := usecase.NewService(store, invalidator, serviceCatalog)
	handler := api.NewHandler(service)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server starting on http://localhost:%d", cfg.Port)
		log.Printf("api available at http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}

	log.Println("server stopped")
}
