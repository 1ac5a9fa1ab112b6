package models

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/BoostBoard/internal/pkg/tiers"
)

// Community is a listed community. Only the fields relevant to promotion and
// tier state are modelled here; listing content lives elsewhere.
type Community struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	OwnerID       string     `gorm:"type:varchar(64);index;default:''" json:"owner_id" validate:"max=64"`
	Tier          tiers.Tier `gorm:"type:varchar(16);not null;default:'normal';index" json:"tier" validate:"oneof=normal silver gold"`
	TierExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"tier_expires_at"`
	PromoteCount  int64      `gorm:"not null;default:0" json:"promote_count"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Community) Validate() error {
	v := validator.New()
	return v.Struct(c)
}

// TierLapsed reports whether a paid tier has run out (or was never given an
// expiry) and the community should be treated as normal.
func (c *Community) TierLapsed(now time.Time) bool {
	if tiers.Normalize(string(c.Tier)) == tiers.Normal {
		return false
	}
	return c.TierExpiresAt == nil || !c.TierExpiresAt.After(now)
}
