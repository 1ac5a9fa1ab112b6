package router

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/BoostBoard/app/controllers"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/billing"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/config"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/identity"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/middleware"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/promotion"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tierstate"
)

// every API route is reachable at the root and under the versioned prefix
var mountPrefixes = []string{"", "/api/v1"}

const (
	rateLimitMax    = 120
	rateLimitWindow = time.Minute
)

type ApiRouter struct {
	components Components
}

func NewApiRouter(components Components) *ApiRouter {
	return &ApiRouter{components: components}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	cfg := h.components.Config
	repos := h.components.Repositories
	store := tierstate.NewStore(repos.GetCommunityRepository(), nil)

	var listingCache promotion.Cache
	if h.components.Cache != nil {
		listingCache = h.components.Cache
	}
	promotions := controllers.NewPromotionController(
		promotion.NewService(repos.GetPromotionRepository(), store, listingCache, cfg.Cache.ListingTTL, nil),
	)
	tierUpgrade := controllers.NewTierController(store)

	requireAuth := bearerMiddleware(cfg)
	webhook := webhookHandler(h.components)
	checkout := checkoutHandler(h.components, store)

	// registered after the system routes, so health checks and scrapes are not limited
	app.Use(limiter.New(h.limiterConfig()))

	for _, prefix := range mountPrefixes {
		group := app.Group(prefix)

		group.Post("/promote", requireAuth, promotions.HandlePromote)
		group.Get("/user-promotion-info", requireAuth, promotions.HandleUserPromotionInfo)
		group.Get("/community-promotions-info", promotions.HandleCommunityPromotionsInfo)
		group.Get("/communities/:id/promotion-status", promotions.HandleCommunityPromotionStatus)
		group.Post("/upgrade-tier", requireAuth, tierUpgrade.HandleUpgradeTier)
		group.Post("/create-checkout", requireAuth, checkout)

		// signature-verified in the handler, no bearer token
		group.Post("/payment-webhook", webhook)
	}
}

func (h ApiRouter) limiterConfig() limiter.Config {
	conf := limiter.Config{
		Max:        rateLimitMax,
		Expiration: rateLimitWindow,
		Next: func(c *fiber.Ctx) bool {
			// providers retry on 429, which only delays tier grants
			return strings.HasSuffix(c.Path(), "/payment-webhook")
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Too many requests, please slow down",
			})
		},
	}

	cacheCfg := h.components.Config.Cache
	if h.components.Cache != nil && cacheCfg.Enabled() {
		port, err := strconv.Atoi(cacheCfg.Port)
		if err != nil {
			port = 6379
		}
		// database 1 keeps limiter keys apart from the listing cache in 0
		conf.Storage = redis.New(redis.Config{
			Host:     cacheCfg.Host,
			Port:     port,
			Password: cacheCfg.Password,
			Database: 1,
			Reset:    false,
		})
	}
	return conf
}

func bearerMiddleware(cfg *config.Config) fiber.Handler {
	verifier, err := identity.NewVerifier(cfg.Identity)
	if err != nil {
		return controllers.NotConfigured("Identity", err)
	}
	log.Infof("[Router] Bearer tokens verified by %T", verifier)
	return middleware.RequireBearer(verifier)
}

func webhookHandler(components Components) fiber.Handler {
	svc, err := billing.NewServiceFromDB(components.Repositories.DB(), components.Config.Payment)
	if err != nil {
		return controllers.NotConfigured("Payment webhook", err)
	}
	return controllers.NewWebhookController(svc).HandlePaymentWebhook
}

func checkoutHandler(components Components, store *tierstate.Store) fiber.Handler {
	client, err := billing.NewClient(components.Config.Payment)
	if err != nil {
		return controllers.NotConfigured("Checkout", err)
	}
	return controllers.NewCheckoutController(client, store).HandleCreateCheckout
}
