package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/BoostBoard/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// promotionRepository implements the PromotionRepository interface
type promotionRepository struct {
	db *gorm.DB
}

// NewPromotionRepository creates a new promotion repository instance
func NewPromotionRepository(db *gorm.DB) PromotionRepository {
	return &promotionRepository{db: db}
}

func (r *promotionRepository) LastByUser(ctx context.Context, userID string) (*models.PromotionEvent, error) {
	var event models.PromotionEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("promoted_at DESC").Order("id DESC").
		Limit(1).Find(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *promotionRepository) LastByCommunity(ctx context.Context, communityID uint) (*models.PromotionEvent, error) {
	var event models.PromotionEvent
	err := r.db.WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("promoted_at DESC").Order("id DESC").
		Limit(1).Find(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *promotionRepository) CountByUserSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PromotionEvent{}).
		Where("user_id = ? AND promoted_at > ?", userID, since).
		Count(&count).Error
	return count, err
}

// LatestPerCommunity returns one row per community holding its newest event.
func (r *promotionRepository) LatestPerCommunity(ctx context.Context) ([]CommunityPromotion, error) {
	var events []models.PromotionEvent
	err := r.db.WithContext(ctx).
		Where("promoted_at = (SELECT MAX(p2.promoted_at) FROM promotion_events p2 WHERE p2.community_id = promotion_events.community_id)").
		Order("promoted_at DESC").Order("community_id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}

	out := make([]CommunityPromotion, 0, len(events))
	seen := make(map[uint]struct{}, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.CommunityID]; ok {
			continue
		}
		seen[ev.CommunityID] = struct{}{}
		out = append(out, CommunityPromotion{CommunityID: ev.CommunityID, PromotedAt: ev.PromotedAt})
	}
	return out, nil
}

func (r *promotionRepository) Record(ctx context.Context, in RecordPromotion) (*models.PromotionEvent, error) {
	event := &models.PromotionEvent{
		UserID:      in.UserID,
		CommunityID: in.CommunityID,
		PromotedAt:  in.At,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := claimCooldown(tx, ScopeUser, UserScopeKey(in.UserID), in.At, in.UserCooldown); err != nil {
			return err
		}
		if err := claimCooldown(tx, ScopeCommunity, CommunityScopeKey(in.CommunityID), in.At, in.CommunityCooldown); err != nil {
			return err
		}

		// Ledger first, counter second.
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Community{}).
			Where("id = ?", in.CommunityID).
			UpdateColumn("promote_count", gorm.Expr("promote_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// claimCooldown takes the cooldown window for key with a single conditional
// write. A missing row is inserted; an existing row is only moved forward if
// its last promotion is at least window old. Zero affected rows means another
// promotion won the window.
func claimCooldown(tx *gorm.DB, scope, key string, at time.Time, window time.Duration) error {
	ins := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope_key"}},
		DoNothing: true,
	}).Create(&models.PromotionCooldown{ScopeKey: key, LastPromotedAt: at})
	if ins.Error != nil {
		return ins.Error
	}
	if ins.RowsAffected > 0 {
		return nil
	}

	upd := tx.Model(&models.PromotionCooldown{}).
		Where("scope_key = ? AND last_promoted_at <= ?", key, at.Add(-window)).
		Update("last_promoted_at", at)
	if upd.Error != nil {
		return upd.Error
	}
	if upd.RowsAffected > 0 {
		return nil
	}

	var current models.PromotionCooldown
	if err := tx.Where("scope_key = ?", key).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &CooldownConflictError{Scope: scope, LastPromotedAt: at}
		}
		return err
	}
	return &CooldownConflictError{Scope: scope, LastPromotedAt: current.LastPromotedAt}
}
