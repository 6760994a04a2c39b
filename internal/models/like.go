package models

import (
	"time"
)

// Like represents a user's membership in a post's liked-by set.
// The combination of UserID and PostID must be unique; inserts race-safe
// via ON CONFLICT DO NOTHING, so membership is idempotent per user.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_user_post" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
