// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"veristat/internal/models"
	"veristat/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	NumScans    int
	ShouldClean bool
}

var scanResults = []string{
	models.ScanResultAuthentic,
	models.ScanResultFabricated,
	models.ScanResultSuspect,
}

var mediaKinds = []string{
	models.MediaKindImage,
	models.MediaKindVideo,
	models.MediaKindAudio,
}

// Seed populates the database with fake engagement data. Counters are
// recomputed from the seeded events at the end so the projection starts
// consistent.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Seeding %d users, %d posts, %d scans...", opts.NumUsers, opts.NumPosts, opts.NumScans)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			return fmt.Errorf("failed to clear existing data: %w", err)
		}
	}

	userIDs := make([]string, opts.NumUsers)
	for i := range userIDs {
		userIDs[i] = uuid.NewString()
	}

	posts, err := createPosts(db, userIDs, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("created %d posts", len(posts))

	comments, err := createComments(db, userIDs, posts)
	if err != nil {
		return fmt.Errorf("failed to create comments: %w", err)
	}
	log.Printf("created %d comments", comments)

	likes, err := createLikes(db, userIDs, posts)
	if err != nil {
		return fmt.Errorf("failed to create likes: %w", err)
	}
	log.Printf("created %d likes", likes)

	if err := createScans(db, userIDs, opts.NumScans); err != nil {
		return fmt.Errorf("failed to create scans: %w", err)
	}
	log.Printf("created %d scans", opts.NumScans)

	if err := rebuildStats(db, userIDs); err != nil {
		return fmt.Errorf("failed to rebuild counters: %w", err)
	}
	log.Println("counters rebuilt from seeded events")

	return nil
}

func clearData(db *gorm.DB) error {
	// Delete in dependency order
	for _, model := range []any{
		&models.Like{}, &models.Comment{}, &models.Scan{}, &models.Post{}, &models.UserStats{},
	} {
		if err := db.Where("1 = 1").Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func createPosts(db *gorm.DB, userIDs []string, count int) ([]models.Post, error) {
	posts := make([]models.Post, 0, count)
	for i := 0; i < count; i++ {
		post := models.Post{
			AuthorID: userIDs[rand.Intn(len(userIDs))],
			Content:  gofakeit.Sentence(8 + rand.Intn(20)),
		}
		if rand.Float64() < 0.3 {
			post.ImageRef = fmt.Sprintf("uploads/%s.webp", uuid.NewString())
		}
		if err := db.Create(&post).Error; err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func createComments(db *gorm.DB, userIDs []string, posts []models.Post) (int, error) {
	total := 0
	for _, post := range posts {
		for i := 0; i < rand.Intn(5); i++ {
			comment := models.Comment{
				PostID:   post.ID,
				AuthorID: userIDs[rand.Intn(len(userIDs))],
				Content:  gofakeit.Sentence(4 + rand.Intn(12)),
			}
			if err := db.Create(&comment).Error; err != nil {
				return total, err
			}
			total++
		}
	}
	return total, nil
}

func createLikes(db *gorm.DB, userIDs []string, posts []models.Post) (int, error) {
	total := 0
	for _, post := range posts {
		// Pick a random subset of users, at most one like each
		rand.Shuffle(len(userIDs), func(i, j int) {
			userIDs[i], userIDs[j] = userIDs[j], userIDs[i]
		})
		for _, userID := range userIDs[:rand.Intn(len(userIDs)+1)] {
			like := models.Like{PostID: post.ID, UserID: userID}
			if err := db.Create(&like).Error; err != nil {
				return total, err
			}
			total++
		}
	}
	return total, nil
}

func createScans(db *gorm.DB, userIDs []string, count int) error {
	for i := 0; i < count; i++ {
		scan := models.Scan{
			UserID:    userIDs[rand.Intn(len(userIDs))],
			Result:    scanResults[rand.Intn(len(scanResults))],
			MediaKind: mediaKinds[rand.Intn(len(mediaKinds))],
			RiskScore: rand.Intn(101),
		}
		if err := db.Create(&scan).Error; err != nil {
			return err
		}
	}
	return nil
}

func rebuildStats(db *gorm.DB, userIDs []string) error {
	statsRepo := repository.NewStatsRepository(db)
	for _, userID := range userIDs {
		var postCount, scanCount, likeCount int64
		if err := db.Model(&models.Post{}).Where("author_id = ?", userID).Count(&postCount).Error; err != nil {
			return err
		}
		if err := db.Model(&models.Scan{}).Where("user_id = ?", userID).Count(&scanCount).Error; err != nil {
			return err
		}
		if err := db.Model(&models.Like{}).
			Joins("JOIN posts ON posts.id = likes.post_id").
			Where("posts.author_id = ?", userID).
			Count(&likeCount).Error; err != nil {
			return err
		}
		stats := &models.UserStats{
			UserID:             userID,
			PostCount:          postCount,
			ScanCount:          scanCount,
			TotalLikesReceived: likeCount,
		}
		if err := statsRepo.Overwrite(context.Background(), stats); err != nil {
			return err
		}
	}
	return nil
}
