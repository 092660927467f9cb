package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"habitat/internal/address"
	addresshandler "habitat/internal/address/handler"
	"habitat/internal/audit"
	"habitat/internal/building"
	buildinghandler "habitat/internal/building/handler"
	"habitat/internal/identity"
	"habitat/internal/location"
	"habitat/internal/platform/config"
	"habitat/internal/platform/httpserver"
	"habitat/internal/platform/metrics"
	"habitat/internal/platform/postgres"
	platformredis "habitat/internal/platform/redis"
	"habitat/internal/profile"
	"habitat/internal/reconcile"
	reconcilehandler "habitat/internal/reconcile/handler"
	"habitat/internal/registration"
	regcache "habitat/internal/registration/cache"
	registrationhandler "habitat/internal/registration/handler"
	httptransport "habitat/internal/transport/http"
)

// main wires stores, services, and handlers. Business logic lives in the
// internal feature packages; this file only decides which implementations
// back them.
func main() {
	cfg := config.FromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var db *sql.DB
	var stores storeSet
	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Error("postgres connection failed", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(context.Background(), db); err != nil {
			logger.Error("schema bootstrap failed", "error", err.Error())
			os.Exit(1)
		}
		stores = postgresStores(db)
		logger.Info("using postgres storage")
	} else {
		stores = memoryStores()
		logger.Warn("no database configured, using in-memory storage")
	}

	cache, err := platformredis.New(cfg.Redis)
	if err != nil {
		logger.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
	}

	m := metrics.New()
	auditor := audit.NewPublisher(stores.audits)
	tokens := identity.NewTokenService(cfg.JWTSigningKey, "habitat")

	buildings := building.NewService(stores.buildings, stores.addresses, building.Limits{
		MaxBulkFlats:       cfg.MaxBulkFlats,
		MaxUnitNumberLen:   cfg.MaxUnitNumberLen,
		MaxBuildingNameLen: cfg.MaxBuildingNameLen,
	}, logger, building.WithAudit(auditor), building.WithMetrics(m))

	addresses := address.NewService(stores.addresses, stores.locations, buildings, logger,
		address.WithAudit(auditor), address.WithMetrics(m))

	var listingCache *regcache.Cache
	var cacheClient *redis.Client
	if cache != nil {
		cacheClient = cache.Client
		listingCache = regcache.New(cacheClient, cfg.RequestCacheTTL, m)
	}
	registrations := registration.NewService(stores.registrations, stores.buildings, stores.addresses,
		stores.locations, stores.profiles, logger,
		registration.WithCache(listingCache), registration.WithAudit(auditor), registration.WithMetrics(m))

	reconciler := reconcile.NewService(stores.addresses, buildings, stores.registrations,
		stores.buildings, stores.locations, logger, reconcile.WithMetrics(m))

	router := httptransport.NewRouter(logger, tokens,
		httptransport.NewHealthHandler(db, cache),
		addresshandler.New(addresses, logger),
		buildinghandler.New(buildings, logger),
		registrationhandler.New(registrations, logger),
		reconcilehandler.New(reconciler, logger),
	)

	srv := httpserver.New(cfg.Addr, router)
	logger.Info("starting habitat", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// storeSet groups the storage implementations so postgres and memory wiring
// stay symmetric.
type storeSet struct {
	addresses     address.Store
	buildings     building.Store
	registrations registration.Store
	locations     location.Store
	profiles      profile.Store
	audits        audit.Store
}

func postgresStores(db *sql.DB) storeSet {
	return storeSet{
		addresses:     address.NewPostgresStore(db),
		buildings:     building.NewPostgresStore(db),
		registrations: registration.NewPostgresStore(db),
		locations:     location.NewPostgresStore(db),
		profiles:      profile.NewPostgresStore(db),
		audits:        audit.NewPostgresStore(db),
	}
}

func memoryStores() storeSet {
	return storeSet{
		addresses:     address.NewInMemoryStore(),
		buildings:     building.NewInMemoryStore(),
		registrations: registration.NewInMemoryStore(),
		locations:     location.NewInMemoryStore(),
		profiles:      profile.NewInMemoryStore(),
		audits:        audit.NewInMemoryStore(),
	}
}
