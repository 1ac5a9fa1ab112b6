package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/BoostBoard/app/models"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// CommunityRepository defines the tier-related operations on communities
type CommunityRepository interface {
	Create(ctx context.Context, community *models.Community) error
	GetByID(ctx context.Context, id uint) (*models.Community, error)
	// ExtendTier sets the tier unless a higher one is still active at now, and
	// moves the expiry to max(current, expiresAt).
	ExtendTier(ctx context.Context, id uint, tier tiers.Tier, expiresAt, now time.Time) error
	SetTier(ctx context.Context, id uint, tier tiers.Tier, expiresAt *time.Time) error
	SetTierExpiry(ctx context.Context, id uint, expiresAt time.Time) error
	// ResetLapsedTier downgrades the community if its paid tier ran out at or
	// before now. It reports whether a row changed.
	ResetLapsedTier(ctx context.Context, id uint, now time.Time) (bool, error)
	ResetAllLapsedTiers(ctx context.Context, now time.Time) (int64, error)
}

// PromotionRepository defines the operations on the promotion ledger
type PromotionRepository interface {
	LastByUser(ctx context.Context, userID string) (*models.PromotionEvent, error)
	LastByCommunity(ctx context.Context, communityID uint) (*models.PromotionEvent, error)
	CountByUserSince(ctx context.Context, userID string, since time.Time) (int64, error)
	LatestPerCommunity(ctx context.Context) ([]CommunityPromotion, error)
	// Record claims both cooldown windows, appends the ledger entry and bumps
	// the community's promote counter as one unit.
	Record(ctx context.Context, in RecordPromotion) (*models.PromotionEvent, error)
}

// RecordPromotion is the input of PromotionRepository.Record
type RecordPromotion struct {
	UserID            string
	CommunityID       uint
	At                time.Time
	UserCooldown      time.Duration
	CommunityCooldown time.Duration
}

// CommunityPromotion is the most recent promotion of a single community
type CommunityPromotion struct {
	CommunityID uint      `json:"community_id"`
	PromotedAt  time.Time `json:"promoted_at"`
}

const (
	ScopeUser      = "user"
	ScopeCommunity = "community"
)

// CooldownConflictError is returned when a concurrent promotion claimed the
// cooldown window first.
type CooldownConflictError struct {
	Scope          string
	LastPromotedAt time.Time
}

func (e *CooldownConflictError) Error() string {
	return fmt.Sprintf("%s cooldown already claimed at %s", e.Scope, e.LastPromotedAt.Format(time.RFC3339))
}

func UserScopeKey(userID string) string {
	return ScopeUser + ":" + userID
}

func CommunityScopeKey(communityID uint) string {
	return fmt.Sprintf("%s:%d", ScopeCommunity, communityID)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Community CommunityRepository
	Promotion PromotionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Community: NewCommunityRepository(db),
		Promotion: NewPromotionRepository(db),
	}
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
