// Package promotion implements boosting a community: the per-user and
// per-community cooldown checks, the ledger write and the read models built
// on top of the ledger.
package promotion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/singleflight"

	"github.com/ManuelReschke/BoostBoard/app/models"
	"github.com/ManuelReschke/BoostBoard/app/repository"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/cooldown"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/metrics"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tierstate"
)

const (
	ReasonUserCooldown      = "user_personal_cooldown"
	ReasonCommunityCooldown = "community_cooldown"

	listingCacheKey = "promotions:latest_per_community"
	dailyWindow     = 24 * time.Hour
)

var ErrNotFound = errors.New("community not found")

// CooldownError is returned when a promotion is refused because a cooldown
// window is still open.
type CooldownError struct {
	Reason           string
	SecondsRemaining int64
	NextEligibleAt   time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %ds remaining", e.Reason, e.SecondsRemaining)
}

// Cache is the subset of the cache client the listing read model needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	promotions repository.PromotionRepository
	store      *tierstate.Store
	cache      Cache
	cacheTTL   time.Duration
	now        func() time.Time
	group      singleflight.Group
}

// NewService wires the promotion service. cache may be nil, in which case
// the listing is read from the database every time.
func NewService(promotions repository.PromotionRepository, store *tierstate.Store, cache Cache, cacheTTL time.Duration, now func() time.Time) *Service {
	if now == nil {
		now = cooldown.Now
	}
	return &Service{
		promotions: promotions,
		store:      store,
		cache:      cache,
		cacheTTL:   cacheTTL,
		now:        now,
	}
}

// Promote boosts communityID on behalf of userID.
func (s *Service) Promote(ctx context.Context, userID string, communityID uint) (*models.PromotionEvent, error) {
	now := s.now()

	lastByUser, err := s.promotions.LastByUser(ctx, userID)
	if err != nil {
		metrics.Promotions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load last promotion of user: %w", err)
	}
	if cdErr := cooldownError(ReasonUserCooldown, promotedAt(lastByUser), tiers.PersonalCooldown, now); cdErr != nil {
		metrics.Promotions.WithLabelValues(ReasonUserCooldown).Inc()
		return nil, cdErr
	}

	community, err := s.store.Get(ctx, communityID)
	if err != nil {
		if errors.Is(err, tierstate.ErrNotFound) {
			metrics.Promotions.WithLabelValues("not_found").Inc()
			return nil, ErrNotFound
		}
		metrics.Promotions.WithLabelValues("error").Inc()
		return nil, err
	}

	communityWindow := tiers.EnforcedCooldown(community.Tier)
	lastByCommunity, err := s.promotions.LastByCommunity(ctx, communityID)
	if err != nil {
		metrics.Promotions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load last promotion of community: %w", err)
	}
	if cdErr := cooldownError(ReasonCommunityCooldown, promotedAt(lastByCommunity), communityWindow, now); cdErr != nil {
		metrics.Promotions.WithLabelValues(ReasonCommunityCooldown).Inc()
		return nil, cdErr
	}

	event, err := s.promotions.Record(ctx, repository.RecordPromotion{
		UserID:            userID,
		CommunityID:       communityID,
		At:                now,
		UserCooldown:      tiers.PersonalCooldown,
		CommunityCooldown: communityWindow,
	})
	if err != nil {
		// A concurrent request won the window between our read and the claim.
		var conflict *repository.CooldownConflictError
		if errors.As(err, &conflict) {
			reason, window := ReasonCommunityCooldown, communityWindow
			if conflict.Scope == repository.ScopeUser {
				reason, window = ReasonUserCooldown, tiers.PersonalCooldown
			}
			metrics.Promotions.WithLabelValues(reason).Inc()
			last := conflict.LastPromotedAt
			if cdErr := cooldownError(reason, &last, window, now); cdErr != nil {
				return nil, cdErr
			}
			return nil, &CooldownError{Reason: reason, SecondsRemaining: 1, NextEligibleAt: now.Add(time.Second)}
		}
		if errors.Is(err, repository.ErrNotFound) {
			metrics.Promotions.WithLabelValues("not_found").Inc()
			return nil, ErrNotFound
		}
		metrics.Promotions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("record promotion: %w", err)
	}

	metrics.Promotions.WithLabelValues("ok").Inc()
	log.Infof("[Promote] User %s promoted community %d (tier=%s)", userID, communityID, community.Tier)
	s.invalidateListing(ctx)
	return event, nil
}

// UserInfo describes where a user stands with the personal cooldown.
type UserInfo struct {
	UserLastPromotion   *time.Time `json:"userLastPromotion"`
	DailyPromotionCount int64      `json:"dailyPromotionCount"`
	CanBoostNow         bool       `json:"canBoostNow"`
	SecondsRemaining    int64      `json:"secondsRemaining"`
	NextEligibleAt      time.Time  `json:"nextEligibleAt"`
}

func (s *Service) UserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	now := s.now()
	last, err := s.promotions.LastByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load last promotion of user: %w", err)
	}
	count, err := s.promotions.CountByUserSince(ctx, userID, now.Add(-dailyWindow))
	if err != nil {
		return nil, fmt.Errorf("count promotions of user: %w", err)
	}

	lastAt := promotedAt(last)
	res := cooldown.Remaining(lastAt, tiers.PersonalCooldown, now)
	return &UserInfo{
		UserLastPromotion:   lastAt,
		DailyPromotionCount: count,
		CanBoostNow:         !res.Active(),
		SecondsRemaining:    res.SecondsRemaining(),
		NextEligibleAt:      cooldown.NextEligibleAt(lastAt, tiers.PersonalCooldown, now),
	}, nil
}

// CommunityStatus is the public promotion state of a single community. The
// display countdown is what the promote button shows; the enforced one is
// what Promote actually checks.
type CommunityStatus struct {
	CommunityID              uint       `json:"community_id"`
	Tier                     tiers.Tier `json:"tier"`
	TierExpiresAt            *time.Time `json:"tier_expires_at"`
	PromoteCount             int64      `json:"promote_count"`
	LastPromotedAt           *time.Time `json:"last_promoted_at"`
	DisplaySecondsRemaining  int64      `json:"display_seconds_remaining"`
	EnforcedSecondsRemaining int64      `json:"enforced_seconds_remaining"`
	NextEligibleAt           time.Time  `json:"next_eligible_at"`
	DisplayCooldownSeconds   int64      `json:"display_cooldown_seconds"`
	EnforcedCooldownSeconds  int64      `json:"enforced_cooldown_seconds"`
}

func (s *Service) CommunityStatus(ctx context.Context, communityID uint) (*CommunityStatus, error) {
	community, err := s.store.Get(ctx, communityID)
	if err != nil {
		if errors.Is(err, tierstate.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	last, err := s.promotions.LastByCommunity(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("load last promotion of community: %w", err)
	}

	now := s.now()
	lastAt := promotedAt(last)
	display := tiers.DisplayCooldown(community.Tier)
	enforced := tiers.EnforcedCooldown(community.Tier)
	return &CommunityStatus{
		CommunityID:              community.ID,
		Tier:                     community.Tier,
		TierExpiresAt:            community.TierExpiresAt,
		PromoteCount:             community.PromoteCount,
		LastPromotedAt:           lastAt,
		DisplaySecondsRemaining:  cooldown.Remaining(lastAt, display, now).SecondsRemaining(),
		EnforcedSecondsRemaining: cooldown.Remaining(lastAt, enforced, now).SecondsRemaining(),
		NextEligibleAt:           cooldown.NextEligibleAt(lastAt, enforced, now),
		DisplayCooldownSeconds:   int64(display / time.Second),
		EnforcedCooldownSeconds:  int64(enforced / time.Second),
	}, nil
}

// LatestPerCommunity returns the newest promotion of every community, served
// from the cache when possible. Cache failures fall back to the database.
func (s *Service) LatestPerCommunity(ctx context.Context) ([]repository.CommunityPromotion, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, listingCacheKey); err == nil {
			var cached []repository.CommunityPromotion
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				metrics.ListingCache.WithLabelValues("hit").Inc()
				return cached, nil
			}
		}
		metrics.ListingCache.WithLabelValues("miss").Inc()
	}

	v, err, _ := s.group.Do(listingCacheKey, func() (interface{}, error) {
		rows, err := s.promotions.LatestPerCommunity(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil && s.cacheTTL > 0 {
			if payload, err := json.Marshal(rows); err == nil {
				if err := s.cache.Set(ctx, listingCacheKey, payload, s.cacheTTL); err != nil {
					log.Warnf("[Promote] Failed to cache promotion listing: %v", err)
				}
			}
		}
		return rows, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load latest promotions: %w", err)
	}
	return v.([]repository.CommunityPromotion), nil
}

func (s *Service) invalidateListing(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, listingCacheKey); err != nil {
		log.Warnf("[Promote] Failed to invalidate promotion listing cache: %v", err)
	}
}

func promotedAt(ev *models.PromotionEvent) *time.Time {
	if ev == nil {
		return nil
	}
	t := ev.PromotedAt
	return &t
}

func cooldownError(reason string, last *time.Time, window time.Duration, now time.Time) *CooldownError {
	res := cooldown.Remaining(last, window, now)
	if !res.Active() {
		return nil
	}
	return &CooldownError{
		Reason:           reason,
		SecondsRemaining: res.SecondsRemaining(),
		NextEligibleAt:   cooldown.NextEligibleAt(last, window, now),
	}
}
