package models

import (
	"time"

	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
)

const (
	PaymentProviderDefault = "checkout"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
)

// ServerSubscription records a paid tier grant for a community, both for
// recurring subscriptions and one-time purchases. Rows are merged on
// ProviderSubscriptionID.
type ServerSubscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	ServerID               uint       `gorm:"not null;index" json:"server_id"`
	UserID                 string     `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Tier                   tiers.Tier `gorm:"type:varchar(16);not null" json:"tier"`
	Provider               string     `gorm:"type:varchar(32);not null" json:"provider"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_server_subscriptions_provider_subid" json:"provider_subscription_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	StartedAt              *time.Time `gorm:"type:timestamp;default:null" json:"started_at,omitempty"`
	ExpiresAt              *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
