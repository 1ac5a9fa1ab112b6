package models

import "time"

// ProcessedEvent marks an inbound payment webhook as handled. The primary key
// is the dedupe key: inserting an id that already exists means the event was
// processed before.
type ProcessedEvent struct {
	ID        string    `gorm:"type:varchar(191);primaryKey" json:"id"`
	Type      string    `gorm:"type:varchar(100);not null;index" json:"type"`
	Reference string    `gorm:"type:varchar(191);not null;default:''" json:"reference"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
