package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/BoostBoard/app/repository"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/cache"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/config"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Components are the shared infrastructure handles the routers build their
// controllers from. Cache is nil when no cache server is configured.
type Components struct {
	Config       *config.Config
	Repositories *repository.Factory
	Cache        *cache.Cache
}

func InstallRouter(app *fiber.App, components Components) {
	// system routes first so they are not rate limited
	setup(app, NewSystemRouter(components), NewApiRouter(components))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
