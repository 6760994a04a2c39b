package service

import (
	"context"
	"log/slog"
	"time"

	"veristat/internal/cache"
	"veristat/internal/middleware"
	"veristat/internal/models"
	"veristat/internal/observability"
	"veristat/internal/repository"

	"gorm.io/gorm"
)

// ReconcileService heals drift between the UserStats projection and the
// event store. The event store is always the source of truth: the
// reconciler overwrites UserStats from raw events, never the reverse.
type ReconcileService struct {
	db    *gorm.DB
	stats repository.StatsRepository
	scans repository.ScanRepository
}

// NewReconcileService wires the reconciler.
func NewReconcileService(db *gorm.DB, stats repository.StatsRepository, scans repository.ScanRepository) *ReconcileService {
	return &ReconcileService{db: db, stats: stats, scans: scans}
}

// pendingScan is the queue payload for scan events whose tracking write
// failed on the live path.
type pendingScan struct {
	UserID    string    `json:"user_id"`
	Result    string    `json:"result"`
	MediaKind string    `json:"media_kind"`
	RiskScore int       `json:"risk_score"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Recalculate recomputes every counter for the user from first principles
// and overwrites the projection row in one transaction. It takes the same
// row lock as the live incremental updaters, so a reconciliation pass and a
// concurrent increment on the same user cannot interleave. Idempotent
// absent concurrent activity.
func (s *ReconcileService) Recalculate(ctx context.Context, userID string) (*models.UserStats, error) {
	defer observability.TrackQuery("recalculate", "user_stats")()
	var result *models.UserStats
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stats := s.stats.WithTx(tx)

		current, err := stats.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		var postCount, scanCount, likesReceived int64
		if err := tx.Model(&models.Post{}).Where("author_id = ?", userID).Count(&postCount).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Scan{}).Where("user_id = ?", userID).Count(&scanCount).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Like{}).
			Joins("JOIN posts ON posts.id = likes.post_id").
			Where("posts.author_id = ?", userID).
			Count(&likesReceived).Error; err != nil {
			return err
		}

		if postCount < 0 || scanCount < 0 || likesReceived < 0 {
			// COUNT cannot go negative; if it did, the store itself is
			// broken and silently "fixing" the projection would hide it.
			return models.NewConsistencyError("recomputed aggregate is negative")
		}

		recomputed := &models.UserStats{
			UserID:             userID,
			PostCount:          postCount,
			ScanCount:          scanCount,
			TotalLikesReceived: likesReceived,
		}
		s.reportDrift(ctx, current, recomputed)

		if err := stats.Overwrite(ctx, recomputed); err != nil {
			return err
		}
		result = recomputed
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateUserStats(ctx, userID)
	return result, nil
}

// reportDrift logs and counts each field where the stored projection
// disagrees with the recomputed aggregates. Drift is repaired, never
// silently: the log line is the audit trail.
func (s *ReconcileService) reportDrift(ctx context.Context, stored, recomputed *models.UserStats) {
	type field struct {
		name       string
		stored     int64
		recomputed int64
	}
	for _, f := range []field{
		{"post_count", stored.PostCount, recomputed.PostCount},
		{"scan_count", stored.ScanCount, recomputed.ScanCount},
		{"total_likes_received", stored.TotalLikesReceived, recomputed.TotalLikesReceived},
	} {
		if f.stored != f.recomputed {
			observability.ReconcileDriftDetected.WithLabelValues(f.name).Inc()
			middleware.Logger.WarnContext(ctx, "projection drift repaired",
				slog.String("user_id", stored.UserID),
				slog.String("field", f.name),
				slog.Int64("stored", f.stored),
				slog.Int64("recomputed", f.recomputed),
			)
		}
	}
}

// RecalculateAll reconciles every user known to the event store or the
// projection. Intended for offline/maintenance use; it holds no lock wider
// than the single user row being recalculated at any instant. A consistency
// failure aborts that user's pass only.
func (s *ReconcileService) RecalculateAll(ctx context.Context) (int, error) {
	ids, err := s.stats.ListKnownUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if _, err := s.Recalculate(ctx, id); err != nil {
			middleware.Logger.ErrorContext(ctx, "recalculation failed",
				slog.String("user_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		processed++
	}
	return processed, nil
}

// DrainPendingScans replays scan events parked by best-effort tracking
// failures on the live path. A transient replay failure puts the event back
// and stops the drain; a corrupt payload surfaces as a consistency error.
func (s *ReconcileService) DrainPendingScans(ctx context.Context) (int, error) {
	replayed := 0
	for {
		var p pendingScan
		found, err := cache.DequeuePendingScan(ctx, &p)
		if err != nil {
			return replayed, models.NewConsistencyError("pending scan queue is unreadable")
		}
		if !found {
			return replayed, nil
		}
		if !models.ValidScanResult(p.Result) || !models.ValidMediaKind(p.MediaKind) {
			return replayed, models.NewConsistencyError("pending scan payload is corrupt")
		}

		scan := &models.Scan{
			UserID:    p.UserID,
			Result:    p.Result,
			MediaKind: p.MediaKind,
			RiskScore: p.RiskScore,
			CreatedAt: p.CreatedAt,
		}
		if err := s.scans.Create(ctx, scan); err != nil {
			// Put it back for the next pass.
			if qerr := cache.EnqueuePendingScan(ctx, p); qerr != nil {
				middleware.Logger.ErrorContext(ctx, "failed to requeue pending scan",
					slog.String("error", qerr.Error()))
			}
			return replayed, err
		}
		cache.InvalidateUserStats(ctx, p.UserID)
		replayed++
	}
}
