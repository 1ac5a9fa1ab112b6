package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/BoostBoard/app/controllers"
)

// SystemRouter serves health and metrics endpoints.
type SystemRouter struct {
	components Components
}

func NewSystemRouter(components Components) *SystemRouter {
	return &SystemRouter{components: components}
}

func (s SystemRouter) InstallRouter(app *fiber.App) {
	health := controllers.NewHealthController(s.components.Repositories.DB())
	metricsHandler := adaptor.HTTPHandler(promhttp.Handler())

	for _, prefix := range mountPrefixes {
		app.Get(prefix+"/healthz", health.HandleHealthz)
		app.Get(prefix+"/metrics", metricsHandler)
	}
}
