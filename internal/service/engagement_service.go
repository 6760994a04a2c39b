// Package service implements the engagement gateway and the consistency
// reconciler on top of the repository layer.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"veristat/internal/cache"
	"veristat/internal/config"
	"veristat/internal/middleware"
	"veristat/internal/models"
	"veristat/internal/observability"
	"veristat/internal/repository"

	"github.com/google/uuid"
)

// EngagementService is the gateway composing the event store and the
// counter projection into atomic user-visible operations. It is also the
// authorization boundary: only the author or a privileged requester may
// delete content.
type EngagementService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	scans    repository.ScanRepository
	stats    repository.StatsRepository
	cfg      *config.Config
}

// NewEngagementService wires the gateway with its repositories.
func NewEngagementService(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	scans repository.ScanRepository,
	stats repository.StatsRepository,
	cfg *config.Config,
) *EngagementService {
	return &EngagementService{
		posts:    posts,
		comments: comments,
		scans:    scans,
		stats:    stats,
		cfg:      cfg,
	}
}

type CreatePostInput struct {
	AuthorID string
	Content  string
	ImageRef string
}

type DeletePostInput struct {
	PostID      uint
	RequesterID string
	Privileged  bool
}

type CreateCommentInput struct {
	PostID   uint
	AuthorID string
	Content  string
}

type DeleteCommentInput struct {
	CommentID   uint
	RequesterID string
	Privileged  bool
}

type ToggleLikeInput struct {
	PostID uint
	UserID string
	// RequestToken, when set, makes a retried call replay its first outcome
	// instead of toggling again. Must be a UUID.
	RequestToken string
}

// LikeResult reports the membership state after a toggle.
type LikeResult struct {
	Liked    bool  `json:"liked"`
	NewCount int64 `json:"new_count"`
}

type SubmitScanInput struct {
	UserID    string
	Result    string
	MediaKind string
	RiskScore int
}

// ScanAck acknowledges a scan submission. Recorded is false when the
// tracking write failed and the event was queued for reconciliation; the
// primary action still succeeded from the caller's perspective.
type ScanAck struct {
	Scan     *models.Scan `json:"scan"`
	Recorded bool         `json:"recorded"`
}

// errTokenInFlight reports a request token claimed by a duplicate call
// whose outcome did not arrive within the polling window.
var errTokenInFlight = errors.New("request token claimed by an in-flight duplicate")

func (s *EngagementService) retry(ctx context.Context, operation string, fn func() error) error {
	return repository.WithRetry(ctx, operation, s.cfg.RetryAttempts, s.cfg.RetryBackoff(), fn)
}

func (s *EngagementService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	content := strings.TrimSpace(in.Content)
	if len(content) > s.cfg.MaxPostChars {
		return nil, models.NewValidationError("Content too long")
	}
	if content == "" && in.ImageRef == "" {
		return nil, models.NewValidationError("Content or an image is required")
	}

	post := &models.Post{
		AuthorID: in.AuthorID,
		Content:  content,
		ImageRef: in.ImageRef,
	}
	err := s.retry(ctx, "create_post", func() error {
		return s.posts.Create(ctx, post)
	})
	observability.RecordOp("create_post", err)
	if err != nil {
		return nil, err
	}
	cache.InvalidateUserStats(ctx, in.AuthorID)
	return s.posts.GetByID(ctx, post.ID)
}

func (s *EngagementService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.posts.GetByID(ctx, id)
}

func (s *EngagementService) ListPosts(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	return s.posts.List(ctx, limit, offset)
}

func (s *EngagementService) ListPostsByAuthor(ctx context.Context, authorID string, limit, offset int) ([]*models.Post, error) {
	return s.posts.ListByAuthor(ctx, authorID, limit, offset)
}

func (s *EngagementService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return err
	}
	if post.AuthorID != in.RequesterID && !in.Privileged {
		return models.NewForbiddenError("You can only delete your own posts")
	}

	err = s.retry(ctx, "delete_post", func() error {
		return s.posts.Delete(ctx, in.PostID)
	})
	observability.RecordOp("delete_post", err)
	if err != nil {
		return err
	}
	cache.InvalidateUserStats(ctx, post.AuthorID)
	return nil
}

func (s *EngagementService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(content) > s.cfg.MaxCommentChars {
		return nil, models.NewValidationError("Content too long")
	}

	comment := &models.Comment{
		PostID:   in.PostID,
		AuthorID: in.AuthorID,
		Content:  content,
	}
	err := s.retry(ctx, "create_comment", func() error {
		return s.comments.Create(ctx, comment)
	})
	observability.RecordOp("create_comment", err)
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *EngagementService) ListComments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	// Surface a missing post as NotFound rather than an empty list.
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.comments.ListByPost(ctx, postID)
}

func (s *EngagementService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	comment, err := s.comments.GetByID(ctx, in.CommentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != in.RequesterID && !in.Privileged {
		return models.NewForbiddenError("You can only delete your own comments")
	}

	err = s.retry(ctx, "delete_comment", func() error {
		return s.comments.Delete(ctx, in.CommentID)
	})
	observability.RecordOp("delete_comment", err)
	return err
}

// ToggleLike flips the requesting user's membership in the post's liked-by
// set. With a request token the first call claims the token before touching
// the database and stores its outcome for replay; a duplicate of the same
// request returns that outcome instead of toggling again, no matter how the
// two calls interleave. Without a token every call is a genuine toggle.
func (s *EngagementService) ToggleLike(ctx context.Context, in ToggleLikeInput) (*LikeResult, error) {
	claimed := false
	if in.RequestToken != "" {
		if _, err := uuid.Parse(in.RequestToken); err != nil {
			return nil, models.NewValidationError("Request token must be a UUID")
		}
		stored, err := s.claimOrReplay(ctx, in.RequestToken)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			return stored, nil
		}
		claimed = true
	}

	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		if claimed {
			cache.ReleaseRequestToken(ctx, in.RequestToken)
		}
		return nil, err
	}

	var result LikeResult
	err = s.retry(ctx, "toggle_like", func() error {
		liked, newCount, terr := s.posts.ToggleLike(ctx, in.PostID, in.UserID)
		if terr != nil {
			return terr
		}
		result = LikeResult{Liked: liked, NewCount: newCount}
		return nil
	})
	observability.RecordOp("toggle_like", err)
	if err != nil {
		if claimed {
			cache.ReleaseRequestToken(ctx, in.RequestToken)
		}
		return nil, err
	}

	cache.InvalidateUserStats(ctx, post.AuthorID)

	if claimed {
		if serr := cache.StoreRequestOutcome(ctx, in.RequestToken, &result); serr != nil {
			middleware.Logger.WarnContext(ctx, "failed to store like outcome for request token",
				slog.String("error", serr.Error()))
		}
	}
	return &result, nil
}

// claimOrReplay resolves a request token before the toggle runs. Returns
// (nil, nil) when this call claimed the token and must execute, or the
// stored outcome when an earlier call with the same token already committed
// one. A token claimed by a still-in-flight duplicate is polled briefly for
// its outcome and surfaces TRANSIENT if none arrives. Redis being down
// degrades to a genuine toggle.
func (s *EngagementService) claimOrReplay(ctx context.Context, token string) (*LikeResult, error) {
	claimed, err := cache.ClaimRequestToken(ctx, token)
	if err != nil || claimed {
		return nil, nil
	}

	wait := s.cfg.RetryBackoff()
	for attempt := 0; ; attempt++ {
		var stored LikeResult
		found, pending, lerr := cache.LookupRequestToken(ctx, token, &stored)
		if lerr != nil {
			return nil, nil
		}
		if found {
			return &stored, nil
		}
		if !pending {
			// Claimant released the token; take it over.
			claimed, err = cache.ClaimRequestToken(ctx, token)
			if err != nil || claimed {
				return nil, nil
			}
		}
		if attempt >= s.cfg.RetryAttempts {
			return nil, models.NewTransientError(errTokenInFlight)
		}
		select {
		case <-ctx.Done():
			return nil, models.NewTransientError(ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
}

// SubmitScan records an authenticity scan. The scan row and its counter
// update share one transaction, but tracking is best-effort from the
// caller's perspective: a storage failure after retries is logged and the
// event parked for reconciliation, never surfaced as failure of the
// analysis that triggered it. Validation failures are still the caller's
// problem and reported before any write.
func (s *EngagementService) SubmitScan(ctx context.Context, in SubmitScanInput) (*ScanAck, error) {
	if !models.ValidScanResult(in.Result) {
		return nil, models.NewValidationError("Unknown scan result")
	}
	if !models.ValidMediaKind(in.MediaKind) {
		return nil, models.NewValidationError("Unknown media kind")
	}
	if in.RiskScore < 0 || in.RiskScore > 100 {
		return nil, models.NewValidationError("Risk score must be between 0 and 100")
	}

	scan := &models.Scan{
		UserID:    in.UserID,
		Result:    in.Result,
		MediaKind: in.MediaKind,
		RiskScore: in.RiskScore,
	}
	err := s.retry(ctx, "submit_scan", func() error {
		return s.scans.Create(ctx, scan)
	})
	observability.RecordOp("submit_scan", err)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "scan tracking failed, queueing for reconciliation",
			slog.String("user_id", in.UserID),
			slog.String("error", err.Error()),
		)
		observability.ScanTrackingDeferred.Inc()
		if qerr := cache.EnqueuePendingScan(ctx, pendingScan{
			UserID:    in.UserID,
			Result:    in.Result,
			MediaKind: in.MediaKind,
			RiskScore: in.RiskScore,
		}); qerr != nil {
			middleware.Logger.ErrorContext(ctx, "failed to queue pending scan",
				slog.String("error", qerr.Error()))
		}
		return &ScanAck{Scan: scan, Recorded: false}, nil
	}

	cache.InvalidateUserStats(ctx, in.UserID)
	return &ScanAck{Scan: scan, Recorded: true}, nil
}

func (s *EngagementService) ListScans(ctx context.Context, userID string, limit, offset int) ([]*models.Scan, error) {
	return s.scans.ListByUser(ctx, userID, limit, offset)
}

// GetUserStats returns the counter projection for the user, zero-valued if
// the user has no activity. Reads go through a short-TTL cache; every
// mutation on the user invalidates it.
func (s *EngagementService) GetUserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	var stats models.UserStats
	err := cache.Aside(ctx, cache.UserStatsKey(userID), &stats, cache.StatsTTL, func() error {
		fetched, ferr := s.stats.Get(ctx, userID)
		if ferr != nil {
			return ferr
		}
		stats = *fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
