package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/BoostBoard/internal/pkg/promotion"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/usercontext"
)

// PromotionController serves promoting communities and the promotion read models
type PromotionController struct {
	svc *promotion.Service
}

// NewPromotionController creates a new promotion controller
func NewPromotionController(svc *promotion.Service) *PromotionController {
	return &PromotionController{svc: svc}
}

type promoteRequest struct {
	CommunityID uint `json:"community_id" validate:"required,gt=0"`
}

// HandlePromote boosts a community for the authenticated user.
func (pc *PromotionController) HandlePromote(c *fiber.Ctx) error {
	var req promoteRequest
	if err := parseBody(c, &req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", describeValidation(err))
	}
	userID := usercontext.GetUserID(c)
	if userID == "" {
		return jsonError(c, fiber.StatusUnauthorized, "unauthenticated", "Login required")
	}

	_, err := pc.svc.Promote(c.UserContext(), userID, req.CommunityID)
	if err != nil {
		var cdErr *promotion.CooldownError
		switch {
		case errors.As(err, &cdErr):
			c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(cdErr.SecondsRemaining, 10))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":            cdErr.Reason,
				"reason":           cdErr.Reason,
				"message":          cooldownMessage(cdErr.Reason),
				"secondsRemaining": cdErr.SecondsRemaining,
				"nextEligibleAt":   cdErr.NextEligibleAt.UTC().Format(time.RFC3339),
			})
		case errors.Is(err, promotion.ErrNotFound):
			return jsonError(c, fiber.StatusNotFound, "not_found", "Community not found")
		default:
			return internalError(c, "Promote", err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Community promoted successfully",
	})
}

func cooldownMessage(reason string) string {
	if reason == promotion.ReasonUserCooldown {
		return "You can only promote one community per hour"
	}
	return "This community was promoted recently, try again later"
}

// HandleUserPromotionInfo returns the caller's personal cooldown state.
func (pc *PromotionController) HandleUserPromotionInfo(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == "" {
		return jsonError(c, fiber.StatusUnauthorized, "unauthenticated", "Login required")
	}
	info, err := pc.svc.UserInfo(c.UserContext(), userID)
	if err != nil {
		return internalError(c, "Promote", err)
	}
	return c.JSON(info)
}

// HandleCommunityPromotionsInfo lists the newest promotion of every community.
func (pc *PromotionController) HandleCommunityPromotionsInfo(c *fiber.Ctx) error {
	rows, err := pc.svc.LatestPerCommunity(c.UserContext())
	if err != nil {
		return internalError(c, "Promote", err)
	}
	return c.JSON(fiber.Map{"promotions": rows})
}

// HandleCommunityPromotionStatus returns tier and cooldown state of one community.
func (pc *PromotionController) HandleCommunityPromotionStatus(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Community id must be a positive integer")
	}
	status, err := pc.svc.CommunityStatus(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, promotion.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Community not found")
		}
		return internalError(c, "Promote", err)
	}
	return c.JSON(status)
}
