package models

import "time"

// PromotionEvent is one boost of a community by a user. Rows are append-only:
// they are never updated or deleted, and the same user/community pair is
// expected to appear many times over the life of a listing.
type PromotionEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"type:varchar(64);not null;index:idx_promotion_events_user_time,priority:1" json:"user_id"`
	CommunityID uint      `gorm:"not null;index:idx_promotion_events_community_time,priority:1" json:"community_id"`
	PromotedAt  time.Time `gorm:"type:timestamp;not null;index:idx_promotion_events_user_time,priority:2;index:idx_promotion_events_community_time,priority:2" json:"promoted_at"`
}

// PromotionCooldown holds the last accepted promotion per scope
// ("user:<id>" or "community:<id>"). It is claimed with a conditional write so
// that two concurrent promotions cannot both pass the same cooldown window.
type PromotionCooldown struct {
	ScopeKey       string    `gorm:"type:varchar(191);primaryKey" json:"scope_key"`
	LastPromotedAt time.Time `gorm:"type:timestamp;not null" json:"last_promoted_at"`
}
