package models

import (
	"time"
)

// Scan verdicts.
const (
	ScanResultAuthentic  = "authentic"
	ScanResultFabricated = "fabricated"
	ScanResultSuspect    = "suspect"
)

// Media kinds a scan can analyze.
const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
	MediaKindAudio = "audio"
)

// Scan is an append-only event-store record of one authenticity analysis.
// Scans are never updated or deleted by the normal flow.
type Scan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"not null;index" json:"user_id"`
	Result    string    `gorm:"not null" json:"result"`
	MediaKind string    `gorm:"not null" json:"media_kind"`
	RiskScore int       `gorm:"not null" json:"risk_score"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidScanResult reports whether s is a known verdict.
func ValidScanResult(s string) bool {
	switch s {
	case ScanResultAuthentic, ScanResultFabricated, ScanResultSuspect:
		return true
	}
	return false
}

// ValidMediaKind reports whether s is a known media kind.
func ValidMediaKind(s string) bool {
	switch s {
	case MediaKindImage, MediaKindVideo, MediaKindAudio:
		return true
	}
	return false
}
