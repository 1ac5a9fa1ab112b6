package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/BoostBoard/internal/pkg/billing"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tierstate"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/usercontext"
)

// WebhookController receives payment provider webhooks.
type WebhookController struct {
	svc *billing.Service
}

func NewWebhookController(svc *billing.Service) *WebhookController {
	return &WebhookController{svc: svc}
}

func (wc *WebhookController) HandlePaymentWebhook(c *fiber.Ctx) error {
	// Body must be copied: fasthttp reuses the buffer after the handler returns.
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := firstHeaderValue(c, "X-Signature", "X-Webhook-Signature", "Webhook-Signature")
	timestamp := firstHeaderValue(c, "X-Timestamp", "Webhook-Timestamp")

	res, err := wc.svc.ProcessWebhook(c.UserContext(), rawBody, signature, timestamp)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidSignature):
			return jsonError(c, fiber.StatusUnauthorized, "invalid_signature", "Webhook signature does not match")
		case errors.Is(err, billing.ErrMissingTimestamp):
			return jsonError(c, fiber.StatusBadRequest, "missing_timestamp", "Webhook timestamp header is required")
		case errors.Is(err, billing.ErrStaleTimestamp):
			return jsonError(c, fiber.StatusRequestTimeout, "stale_timestamp", "Webhook timestamp is outside the accepted window")
		case errors.Is(err, billing.ErrInvalidPayload):
			return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Webhook body must be a JSON object")
		case errors.Is(err, billing.ErrMalformedReference):
			return jsonError(c, fiber.StatusBadRequest, "malformed_reference", "Payment reference is missing or malformed")
		case errors.Is(err, billing.ErrMissingTier):
			return jsonError(c, fiber.StatusBadRequest, "missing_tier", "Payment carries no silver or gold tier")
		case errors.Is(err, billing.ErrUnknownCommunity):
			return jsonError(c, fiber.StatusNotFound, "not_found", "Referenced community does not exist")
		default:
			// already logged with event id, type and reference
			return jsonError(c, fiber.StatusInternalServerError, "processing_failed", "Webhook could not be processed")
		}
	}

	switch {
	case res.Duplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	case res.Ignored:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// CheckoutController starts hosted checkouts with the payment provider.
type CheckoutController struct {
	client *billing.Client
	store  *tierstate.Store
}

func NewCheckoutController(client *billing.Client, store *tierstate.Store) *CheckoutController {
	return &CheckoutController{client: client, store: store}
}

type createCheckoutRequest struct {
	CommunityID uint   `json:"community_id" validate:"required,gt=0"`
	Tier        string `json:"tier" validate:"required"`
}

func (cc *CheckoutController) HandleCreateCheckout(c *fiber.Ctx) error {
	var req createCheckoutRequest
	if err := parseBody(c, &req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", describeValidation(err))
	}
	tier, ok := tiers.ParsePaid(req.Tier)
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid_tier", "tier must be silver or gold")
	}
	user := usercontext.GetUserContext(c)
	if user.UserID == "" {
		return jsonError(c, fiber.StatusUnauthorized, "unauthenticated", "Login required")
	}

	ctx := c.UserContext()
	community, err := cc.store.Get(ctx, req.CommunityID)
	if err != nil {
		if errors.Is(err, tierstate.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Community not found")
		}
		return internalError(c, "Checkout", err)
	}
	if community.OwnerID != "" && community.OwnerID != user.UserID {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Only the owner can upgrade this community")
	}

	url, err := cc.client.CreateCheckout(ctx, billing.CheckoutRequest{
		CommunityID: community.ID,
		UserID:      user.UserID,
		Email:       user.Email,
		Tier:        tier,
	})
	if err != nil {
		if errors.Is(err, billing.ErrProvider) {
			return jsonError(c, fiber.StatusBadGateway, "provider_error", "Payment provider did not accept the checkout")
		}
		return internalError(c, "Checkout", err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"checkout_url": url})
}
