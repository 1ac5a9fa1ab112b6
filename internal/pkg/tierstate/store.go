// Package tierstate owns a community's tier and tier expiry. Every read goes
// through the normalizer, so callers never observe a paid tier past its expiry.
package tierstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/BoostBoard/app/models"
	"github.com/ManuelReschke/BoostBoard/app/repository"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/cooldown"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
)

var (
	ErrNotFound     = errors.New("community not found")
	ErrInvalidTier  = errors.New("tier must be silver or gold")
	ErrNotAnUpgrade = errors.New("tier is not above the current tier")
)

// Store provides tier reads and mutations for communities.
type Store struct {
	repo repository.CommunityRepository
	now  func() time.Time
}

// NewStore creates a tier store. A nil clock defaults to cooldown.Now.
func NewStore(repo repository.CommunityRepository, now func() time.Time) *Store {
	if now == nil {
		now = cooldown.Now
	}
	return &Store{repo: repo, now: now}
}

// Get loads a community and normalizes a lapsed tier before returning it.
func (s *Store) Get(ctx context.Context, id uint) (*models.Community, error) {
	community, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !community.TierLapsed(s.now()) {
		return community, nil
	}
	if _, err := s.Normalize(ctx, id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Normalize resets an expired (or expiry-less) paid tier back to normal. It
// is a no-op for communities that are already normal or still within their
// paid period, and reports whether anything changed.
func (s *Store) Normalize(ctx context.Context, id uint) (bool, error) {
	changed, err := s.repo.ResetLapsedTier(ctx, id, s.now())
	if err != nil {
		return false, fmt.Errorf("normalize tier of community %d: %w", id, err)
	}
	if changed {
		log.Infof("[TierState] Community %d tier lapsed, reset to %s", id, tiers.Normal)
	}
	return changed, nil
}

// NormalizeExpired resets every lapsed community in one statement.
func (s *Store) NormalizeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.ResetAllLapsedTiers(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("normalize lapsed tiers: %w", err)
	}
	return n, nil
}

// Extend grants tier until expiresAt, keeping a later existing expiry and a
// higher tier that has not run out yet.
func (s *Store) Extend(ctx context.Context, id uint, tier tiers.Tier, expiresAt time.Time) error {
	paid, ok := tiers.ParsePaid(string(tier))
	if !ok {
		return ErrInvalidTier
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	return s.repo.ExtendTier(ctx, id, paid, cooldown.Truncate(expiresAt), s.now())
}

// SetExpiry moves the expiry without touching the tier. Used when a
// subscription is canceled but still paid up for a while.
func (s *Store) SetExpiry(ctx context.Context, id uint, expiresAt time.Time) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	return s.repo.SetTierExpiry(ctx, id, cooldown.Truncate(expiresAt))
}

// Downgrade resets a community to normal immediately.
func (s *Store) Downgrade(ctx context.Context, id uint) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	return s.repo.SetTier(ctx, id, tiers.Normal, nil)
}

// Upgrade moves a community to a strictly higher paid tier for duration, or
// longer if the current grant already runs past that.
// Re-buying the current tier or anything below it is refused.
func (s *Store) Upgrade(ctx context.Context, id uint, next tiers.Tier, duration time.Duration) (*models.Community, error) {
	paid, ok := tiers.ParsePaid(string(next))
	if !ok {
		return nil, ErrInvalidTier
	}
	community, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tiers.IsUpgrade(community.Tier, paid) {
		return community, ErrNotAnUpgrade
	}

	now := s.now()
	if err := s.repo.ExtendTier(ctx, id, paid, cooldown.Truncate(now.Add(duration)), now); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *Store) load(ctx context.Context, id uint) (*models.Community, error) {
	community, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load community %d: %w", id, err)
	}
	return community, nil
}
