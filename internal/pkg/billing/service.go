// Package billing reconciles payment provider webhooks into community tier
// state and talks to the provider's checkout API.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/BoostBoard/app/models"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/config"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/cooldown"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/metrics"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tierstate"
)

// subscriptionNamespace seeds the UUIDv5 ids synthesized for purchases that
// carry no provider subscription id.
var subscriptionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://boostboard.app/server-subscriptions"))

// Result describes what ProcessWebhook did with a delivery.
type Result struct {
	EventID      string
	EventType    string
	Reference    Reference
	Duplicate    bool
	Ignored      bool
	Tier         tiers.Tier
	ExpiresAt    *time.Time
	Downgraded   bool
	Subscription *models.ServerSubscription
}

// Service provides webhook verification and tier reconciliation.
type Service struct {
	repo     Repository
	store    *tierstate.Store
	provider string
	secret   string
	now      func() time.Time
}

// NewService creates a billing service. The payment section must carry a
// provider name and webhook secret.
func NewService(repo Repository, cfg config.PaymentConfig, now func() time.Time) (*Service, error) {
	if err := cfg.ValidateWebhook(); err != nil {
		return nil, err
	}
	if now == nil {
		now = cooldown.Now
	}
	return &Service{
		repo:     repo,
		store:    tierstate.NewStore(repo.Communities(), now),
		provider: strings.ToLower(strings.TrimSpace(cfg.Provider)),
		secret:   cfg.WebhookSecret,
		now:      now,
	}, nil
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, cfg config.PaymentConfig) (*Service, error) {
	return NewService(NewRepository(db), cfg, nil)
}

// ProcessWebhook verifies and applies a single webhook delivery. body must be
// the raw request body; signature and timestamp are the header values.
func (s *Service) ProcessWebhook(ctx context.Context, body []byte, signature, timestamp string) (*Result, error) {
	if !VerifySignature(body, signature, timestamp, s.secret) {
		metrics.Webhooks.WithLabelValues("unknown", "invalid_signature").Inc()
		return nil, ErrInvalidSignature
	}
	if _, err := CheckTimestamp(timestamp, s.now()); err != nil {
		metrics.Webhooks.WithLabelValues("unknown", "stale_timestamp").Inc()
		return nil, err
	}
	payload, err := ParsePayload(body)
	if err != nil {
		metrics.Webhooks.WithLabelValues("unknown", "invalid_payload").Inc()
		return nil, err
	}

	res := &Result{EventType: eventType(payload)}
	res.EventID = eventID(payload, res.EventType, timestamp)

	if !isKnownEvent(res.EventType) {
		log.Infof("[Webhook] Ignoring event %s of type %q", res.EventID, res.EventType)
		metrics.Webhooks.WithLabelValues("other", "ignored").Inc()
		res.Ignored = true
		return res, nil
	}

	ref, err := findReference(payload)
	if err != nil {
		log.Warnf("[Webhook] Event %s (%s) has no usable reference", res.EventID, res.EventType)
		metrics.Webhooks.WithLabelValues(res.EventType, "malformed_reference").Inc()
		return nil, err
	}
	res.Reference = ref

	if res.EventType != EventSubscriptionCanceled {
		tier, ok := ExtractTier(payload)
		if !ok {
			log.Warnf("[Webhook] Event %s (%s) ref=%s carries no paid tier", res.EventID, res.EventType, ref)
			metrics.Webhooks.WithLabelValues(res.EventType, "missing_tier").Inc()
			return nil, ErrMissingTier
		}
		res.Tier = tier
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		created, err := tx.CreateProcessedEventIfNotExists(ctx, &models.ProcessedEvent{
			ID:        truncate(res.EventID, 191),
			Type:      res.EventType,
			Reference: ref.String(),
		})
		if err != nil {
			return fmt.Errorf("record processed event: %w", err)
		}
		if !created {
			res.Duplicate = true
			return nil
		}
		return s.apply(ctx, tx, payload, res)
	})
	if err != nil {
		if errors.Is(err, ErrUnknownCommunity) {
			log.Warnf("[Webhook] Event %s (%s) references unknown community: ref=%s", res.EventID, res.EventType, ref)
			metrics.Webhooks.WithLabelValues(res.EventType, "unknown_community").Inc()
			return nil, err
		}
		log.Errorf("[Webhook] Processing failed for event %s (%s) ref=%s: %v", res.EventID, res.EventType, ref, err)
		metrics.Webhooks.WithLabelValues(res.EventType, "error").Inc()
		return nil, err
	}

	if res.Duplicate {
		log.Infof("[Webhook] Duplicate event %s (%s) ignored", res.EventID, res.EventType)
		metrics.Webhooks.WithLabelValues(res.EventType, "duplicate").Inc()
		return res, nil
	}

	if _, err := s.store.Normalize(ctx, ref.CommunityID); err != nil {
		// the read paths normalize lazily, so the event still counts as handled
		log.Errorf("[Webhook] Normalizer failed after event %s for community %d: %v", res.EventID, ref.CommunityID, err)
	}

	metrics.Webhooks.WithLabelValues(res.EventType, "processed").Inc()
	log.Infof("[Webhook] Processed event %s (%s) ref=%s tier=%s", res.EventID, res.EventType, ref, res.Tier)
	return res, nil
}

func (s *Service) apply(ctx context.Context, tx Repository, payload Payload, res *Result) error {
	store := tierstate.NewStore(tx.Communities(), s.now)
	community, err := store.Get(ctx, res.Reference.CommunityID)
	if err != nil {
		if errors.Is(err, tierstate.ErrNotFound) {
			return ErrUnknownCommunity
		}
		return err
	}

	switch res.EventType {
	case EventOrderCompleted:
		return s.applyOrder(ctx, tx, store, payload, res)
	case EventSubscriptionActivated, EventSubscriptionRenewed:
		return s.applySubscription(ctx, tx, store, payload, res)
	case EventSubscriptionCanceled:
		return s.applyCancellation(ctx, tx, store, community, payload, res)
	}
	return nil
}

func (s *Service) applyOrder(ctx context.Context, tx Repository, store *tierstate.Store, payload Payload, res *Result) error {
	now := s.now()
	expiresAt := now.Add(tiers.GrantDuration)

	key := orderID(payload)
	if key == "" {
		key = res.EventID
	}
	sub := &models.ServerSubscription{
		ServerID:               res.Reference.CommunityID,
		UserID:                 res.Reference.UserID,
		Tier:                   res.Tier,
		Provider:               s.provider,
		ProviderSubscriptionID: OneTimeSubscriptionID(s.provider, key),
		Status:                 models.SubscriptionStatusActive,
		StartedAt:              &now,
		ExpiresAt:              &expiresAt,
	}
	if err := tx.UpsertSubscription(ctx, sub); err != nil {
		return fmt.Errorf("upsert one-time subscription: %w", err)
	}
	res.Subscription = sub

	if err := store.Extend(ctx, res.Reference.CommunityID, res.Tier, expiresAt); err != nil {
		return fmt.Errorf("extend tier: %w", err)
	}
	res.ExpiresAt = &expiresAt
	return nil
}

func (s *Service) applySubscription(ctx context.Context, tx Repository, store *tierstate.Store, payload Payload, res *Result) error {
	now := s.now()
	subID := s.subscriptionID(payload, res.Reference)
	existing, err := tx.GetSubscription(ctx, subID)
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}

	var expiresAt time.Time
	if end := periodEnd(payload); end != nil {
		expiresAt = cooldown.Truncate(*end)
	} else {
		base := now
		if existing != nil && existing.ExpiresAt != nil && existing.ExpiresAt.After(now) {
			base = *existing.ExpiresAt
		}
		expiresAt = base.Add(tiers.GrantDuration)
	}

	startedAt := now
	if existing != nil && existing.StartedAt != nil {
		startedAt = *existing.StartedAt
	} else if start := periodStart(payload); start != nil {
		startedAt = cooldown.Truncate(*start)
	}

	sub := &models.ServerSubscription{
		ServerID:               res.Reference.CommunityID,
		UserID:                 res.Reference.UserID,
		Tier:                   res.Tier,
		Provider:               s.provider,
		ProviderSubscriptionID: subID,
		Status:                 models.SubscriptionStatusActive,
		StartedAt:              &startedAt,
		ExpiresAt:              &expiresAt,
	}
	if err := tx.UpsertSubscription(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	res.Subscription = sub

	if !expiresAt.After(now) {
		// a period end in the past grants nothing; the normalizer cleans up
		res.ExpiresAt = &expiresAt
		return nil
	}
	if err := store.Extend(ctx, res.Reference.CommunityID, res.Tier, expiresAt); err != nil {
		return fmt.Errorf("extend tier: %w", err)
	}
	res.ExpiresAt = &expiresAt
	return nil
}

func (s *Service) applyCancellation(ctx context.Context, tx Repository, store *tierstate.Store, community *models.Community, payload Payload, res *Result) error {
	now := s.now()
	subID := s.subscriptionID(payload, res.Reference)
	existing, err := tx.GetSubscription(ctx, subID)
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}

	effective := cancellationExpiry(periodEnd(payload), existing, community, now)

	tier := community.Tier
	if t, ok := ExtractTier(payload); ok {
		tier = t
	} else if existing != nil {
		tier = existing.Tier
	}
	res.Tier = tier

	sub := &models.ServerSubscription{
		ServerID:               res.Reference.CommunityID,
		UserID:                 res.Reference.UserID,
		Tier:                   tier,
		Provider:               s.provider,
		ProviderSubscriptionID: subID,
		Status:                 models.SubscriptionStatusCanceled,
		ExpiresAt:              &effective,
	}
	if existing != nil {
		sub.StartedAt = existing.StartedAt
	}
	if err := tx.UpsertSubscription(ctx, sub); err != nil {
		return fmt.Errorf("upsert canceled subscription: %w", err)
	}
	res.Subscription = sub
	res.ExpiresAt = &effective

	if !effective.After(now) {
		if err := store.Downgrade(ctx, res.Reference.CommunityID); err != nil {
			return fmt.Errorf("downgrade tier: %w", err)
		}
		res.Downgraded = true
		return nil
	}
	if community.Tier == tiers.Normal {
		return nil
	}
	if err := store.SetExpiry(ctx, res.Reference.CommunityID, effective); err != nil {
		return fmt.Errorf("set tier expiry: %w", err)
	}
	return nil
}

// cancellationExpiry picks when a canceled subscription stops granting its
// tier: the provider's period end, else what we stored for the subscription,
// else one grant period from its start, else the community's own expiry.
func cancellationExpiry(end *time.Time, existing *models.ServerSubscription, community *models.Community, now time.Time) time.Time {
	switch {
	case end != nil:
		return cooldown.Truncate(*end)
	case existing != nil && existing.ExpiresAt != nil:
		return *existing.ExpiresAt
	case existing != nil && existing.StartedAt != nil:
		return existing.StartedAt.Add(tiers.GrantDuration)
	case community.TierExpiresAt != nil:
		return *community.TierExpiresAt
	default:
		return now
	}
}

// subscriptionID is the provider's subscription id, or a stable id derived
// from the reference when the payload has none.
func (s *Service) subscriptionID(payload Payload, ref Reference) string {
	if id := providerSubscriptionID(payload); id != "" {
		return truncate(id, 191)
	}
	return "sub_" + uuid.NewSHA1(subscriptionNamespace, []byte(s.provider+":"+ref.String())).String()
}

// OneTimeSubscriptionID returns the synthesized subscription id of a one-time
// purchase. Replays of the same order map to the same row.
func OneTimeSubscriptionID(provider, key string) string {
	return "onetime_" + uuid.NewSHA1(subscriptionNamespace, []byte(provider+":"+key)).String()
}

// truncate fits s into n bytes. Longer values keep a prefix cut on a rune
// boundary plus a hash of the whole value, so distinct ids stay distinct.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	suffix := "_" + uuid.NewSHA1(subscriptionNamespace, []byte(s)).String()
	cut := n - len(suffix)
	if cut < 0 {
		return suffix[len(suffix)-n:]
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + suffix
}
