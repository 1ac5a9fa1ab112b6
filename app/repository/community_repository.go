package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/BoostBoard/app/models"
	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
	"gorm.io/gorm"
)

// communityRepository implements the CommunityRepository interface
type communityRepository struct {
	db *gorm.DB
}

// NewCommunityRepository creates a new community repository instance
func NewCommunityRepository(db *gorm.DB) CommunityRepository {
	return &communityRepository{db: db}
}

func (r *communityRepository) Create(ctx context.Context, community *models.Community) error {
	if community.Tier == "" {
		community.Tier = tiers.Normal
	}
	if err := community.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(community).Error
}

func (r *communityRepository) GetByID(ctx context.Context, id uint) (*models.Community, error) {
	var community models.Community
	if err := r.db.WithContext(ctx).First(&community, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &community, nil
}

// ExtendTier never moves an existing expiry backwards, and a higher tier that
// is still running at now is kept. Both are decided by the database in the
// same statement so concurrent grants cannot interleave.
func (r *communityRepository) ExtendTier(ctx context.Context, id uint, tier tiers.Tier, expiresAt, now time.Time) error {
	tx := r.db.WithContext(ctx).Model(&models.Community{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			// tier is assigned before tier_expires_at, so it sees the old expiry
			"tier": gorm.Expr(
				"CASE WHEN tier_expires_at IS NOT NULL AND tier_expires_at > ? AND "+rankSQL+" > ? THEN tier ELSE ? END",
				now, tiers.Rank(tier), string(tier),
			),
			"tier_expires_at": gorm.Expr(
				"CASE WHEN tier_expires_at IS NOT NULL AND tier_expires_at > ? THEN tier_expires_at ELSE ? END",
				expiresAt, expiresAt,
			),
		})
	return tx.Error
}

const rankSQL = "(CASE tier WHEN 'gold' THEN 2 WHEN 'silver' THEN 1 ELSE 0 END)"

func (r *communityRepository) SetTier(ctx context.Context, id uint, tier tiers.Tier, expiresAt *time.Time) error {
	tx := r.db.WithContext(ctx).Model(&models.Community{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"tier":            string(tier),
			"tier_expires_at": expiresAt,
		})
	return tx.Error
}

func (r *communityRepository) SetTierExpiry(ctx context.Context, id uint, expiresAt time.Time) error {
	tx := r.db.WithContext(ctx).Model(&models.Community{}).
		Where("id = ?", id).
		Update("tier_expires_at", expiresAt)
	return tx.Error
}

func (r *communityRepository) ResetLapsedTier(ctx context.Context, id uint, now time.Time) (bool, error) {
	tx := r.lapsed(ctx, now).Where("id = ?", id).
		Updates(map[string]interface{}{
			"tier":            string(tiers.Normal),
			"tier_expires_at": nil,
		})
	return tx.RowsAffected > 0, tx.Error
}

func (r *communityRepository) ResetAllLapsedTiers(ctx context.Context, now time.Time) (int64, error) {
	tx := r.lapsed(ctx, now).
		Updates(map[string]interface{}{
			"tier":            string(tiers.Normal),
			"tier_expires_at": nil,
		})
	return tx.RowsAffected, tx.Error
}

func (r *communityRepository) lapsed(ctx context.Context, now time.Time) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Community{}).
		Where("tier <> ?", string(tiers.Normal)).
		Where("(tier_expires_at IS NULL OR tier_expires_at <= ?)", now)
}
