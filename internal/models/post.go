// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Post is an event-store record of a published post. AuthorID is the opaque
// identity string supplied by the identity provider; no local user table
// exists. ImageRef is an opaque object-storage handle stored verbatim.
type Post struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	AuthorID string `gorm:"not null;index" json:"author_id"`
	Content  string `gorm:"type:text" json:"content"`
	ImageRef string `json:"image_ref,omitempty"`
	// LikesCount is not persisted; the likes table is the canonical set and
	// its cardinality is computed at query time
	LikesCount int `gorm:"->" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int       `gorm:"->" json:"comments_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
