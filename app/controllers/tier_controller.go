package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tierstate"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/usercontext"
)

// TierController serves the direct tier upgrade kept for older clients.
type TierController struct {
	store *tierstate.Store
}

func NewTierController(store *tierstate.Store) *TierController {
	return &TierController{store: store}
}

type upgradeTierRequest struct {
	CommunityID uint   `json:"community_id" validate:"required,gt=0"`
	NewTier     string `json:"new_tier" validate:"required"`
}

// HandleUpgradeTier moves a community to a strictly higher tier for one grant period.
func (tc *TierController) HandleUpgradeTier(c *fiber.Ctx) error {
	var req upgradeTierRequest
	if err := parseBody(c, &req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", describeValidation(err))
	}
	next, ok := tiers.ParsePaid(req.NewTier)
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid_tier", "new_tier must be silver or gold")
	}
	userID := usercontext.GetUserID(c)
	if userID == "" {
		return jsonError(c, fiber.StatusUnauthorized, "unauthenticated", "Login required")
	}

	ctx := c.UserContext()
	community, err := tc.store.Get(ctx, req.CommunityID)
	if err != nil {
		if errors.Is(err, tierstate.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Community not found")
		}
		return internalError(c, "TierUpgrade", err)
	}
	if community.OwnerID != "" && community.OwnerID != userID {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Only the owner can upgrade this community")
	}

	updated, err := tc.store.Upgrade(ctx, req.CommunityID, next, tiers.GrantDuration)
	if err != nil {
		switch {
		case errors.Is(err, tierstate.ErrNotAnUpgrade):
			return jsonError(c, fiber.StatusBadRequest, "not_an_upgrade", "new_tier must be higher than the current tier")
		case errors.Is(err, tierstate.ErrNotFound):
			return jsonError(c, fiber.StatusNotFound, "not_found", "Community not found")
		default:
			return internalError(c, "TierUpgrade", err)
		}
	}

	log.Infof("[TierUpgrade] Community %d upgraded to %s by %s", updated.ID, updated.Tier, userID)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":         "Tier upgraded successfully",
		"tier":            updated.Tier,
		"tier_expires_at": updated.TierExpiresAt,
	})
}
