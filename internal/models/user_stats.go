package models

import (
	"time"
)

// UserStats is the per-user counter projection derived from the event
// store. Every field must equal a deterministic aggregate over event rows
// scoped to UserID; the reconciler recomputes and overwrites rows that
// have drifted. Rows are created lazily on first event and never deleted.
type UserStats struct {
	ID                 uint      `gorm:"primaryKey" json:"-"`
	UserID             string    `gorm:"not null;uniqueIndex" json:"user_id"`
	ScanCount          int64     `gorm:"not null;default:0" json:"scan_count"`
	PostCount          int64     `gorm:"not null;default:0" json:"post_count"`
	TotalLikesReceived int64     `gorm:"not null;default:0" json:"total_likes_received"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName keeps the plural-of-plural GORM default from mangling "stats".
func (UserStats) TableName() string {
	return "user_stats"
}
