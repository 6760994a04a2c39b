// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"veristat/internal/models"
	"veristat/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository is the event store for posts plus the like-set manager.
// Every mutation commits its counter-projection update in the same
// transaction as the event-store write.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	ListByAuthor(ctx context.Context, authorID string, limit, offset int) ([]*models.Post, error)
	Delete(ctx context.Context, id uint) error
	ToggleLike(ctx context.Context, postID uint, userID string) (liked bool, newCount int64, err error)
	CountByAuthor(ctx context.Context, authorID string) (int64, error)
	CountLikesReceived(ctx context.Context, authorID string) (int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db    *gorm.DB
	stats StatsRepository
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, stats: NewStatsRepository(db)}
}

// lockRow appends FOR UPDATE on PostgreSQL. SQLite serializes writers on
// its own and rejects the clause.
func lockRow(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		return r.stats.WithTx(tx).OnPostCreated(ctx, post.AuthorID)
	})
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.applyPostDetails(r.db.WithContext(ctx)).First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Post", id)
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.applyPostDetails(r.db.WithContext(ctx)).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID string, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.applyPostDetails(r.db.WithContext(ctx)).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

// applyPostDetails adds subqueries to fetch the like-set cardinality and
// comment count in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB) *gorm.DB {
	return db.Select("posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) as comments_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) as likes_count")
}

// Delete removes the post, all of its comments, and its liked-by set in one
// transaction, and removes the post's contribution from the author's
// counters. A like toggle racing with the delete either commits first (and
// the cascade claims its effect) or observes the post as gone.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete_post", "posts")()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := lockRow(tx).First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", id)
			}
			return err
		}

		var likes int64
		if err := tx.Model(&models.Like{}).Where("post_id = ?", id).Count(&likes).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Post{}, id).Error; err != nil {
			return err
		}

		return r.stats.WithTx(tx).OnPostDeleted(ctx, post.AuthorID, likes)
	})
}

// ToggleLike atomically flips the user's membership in the post's liked-by
// set. Membership lives in the likes table under a unique (user_id, post_id)
// index; insertion goes through ON CONFLICT DO NOTHING and removal through a
// keyed delete, so both directions are idempotent and concurrent toggles by
// different users commute. The author's counter moves in the same
// transaction as the set mutation, never as a later step.
func (r *postRepository) ToggleLike(ctx context.Context, postID uint, userID string) (bool, int64, error) {
	defer observability.TrackQuery("toggle_like", "likes")()
	var (
		liked    bool
		newCount int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := lockRow(tx).First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", postID)
			}
			return err
		}

		stats := r.stats.WithTx(tx)

		ins := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
			DoNothing: true,
		}).Create(&models.Like{UserID: userID, PostID: postID})
		if ins.Error != nil {
			return ins.Error
		}

		if ins.RowsAffected == 1 {
			liked = true
			if err := stats.OnLikeDelta(ctx, post.AuthorID, 1); err != nil {
				return err
			}
		} else {
			del := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
			if del.Error != nil {
				return del.Error
			}
			liked = false
			if del.RowsAffected == 1 {
				if err := stats.OnLikeDelta(ctx, post.AuthorID, -1); err != nil {
					return err
				}
			}
		}

		return tx.Model(&models.Like{}).Where("post_id = ?", postID).Count(&newCount).Error
	})
	if err != nil {
		return false, 0, err
	}
	return liked, newCount, nil
}

func (r *postRepository) CountByAuthor(ctx context.Context, authorID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID).Count(&count).Error
	return count, err
}

// CountLikesReceived sums the liked-by cardinality across every post the
// author owns.
func (r *postRepository) CountLikesReceived(ctx context.Context, authorID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Joins("JOIN posts ON posts.id = likes.post_id").
		Where("posts.author_id = ?", authorID).
		Count(&count).Error
	return count, err
}
