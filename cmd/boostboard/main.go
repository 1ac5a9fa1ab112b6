package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/BoostBoard/app/repository"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/cache"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/config"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/database"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/env"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/maintenance"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/metrics"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/middleware"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/router"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tierstate"
)

const shutdownTimeout = 10 * time.Second

type application struct {
	app   *fiber.App
	sweep *maintenance.Manager
	cache *cache.Cache
	cfg   *config.Config
}

func main() {
	a, err := newApplication()
	if err != nil {
		log.Fatal(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%s", a.cfg.App.Host, a.cfg.App.Port)
		if err := a.app.Listen(addr); err != nil {
			log.Fatal(err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	a.sweep.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.app.ShutdownWithContext(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
}

func newApplication() (*application, error) {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := database.Setup(cfg.Database, cfg.IsDev())
	if err != nil {
		return nil, err
	}

	var listingCache *cache.Cache
	if cfg.Cache.Enabled() {
		listingCache = cache.New(cfg.Cache)
	}

	app := fiber.New(fiber.Config{
		AppName:   "BoostBoard",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())
	app.Use(metrics.Middleware())
	app.Use(middleware.RequestTimeout(cfg.App.RequestTimeout))

	// SWAGGER / OPENAPI
	if _, err := os.Stat(openAPIPath()); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/",
			FilePath: openAPIPath(),
			Path:     "api",
			Title:    "BoostBoard API",
		}))
	}

	// ROUTER
	repos := repository.NewFactory(db)
	router.InstallRouter(app, router.Components{
		Config:       cfg,
		Repositories: repos,
		Cache:        listingCache,
	})

	store := tierstate.NewStore(repos.GetCommunityRepository(), nil)
	sweep := maintenance.NewManager(store, cfg.Maintenance.TierSweepInterval)
	sweep.Start()

	return &application{app: app, sweep: sweep, cache: listingCache, cfg: cfg}, nil
}

func openAPIPath() string {
	return env.GetEnv("OPENAPI_FILE", "./docs/openapi.yml")
}
