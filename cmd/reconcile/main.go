// Command main runs counter reconciliation against the live database.
// It recomputes per-user engagement counters from stored events and can
// replay scan writes that were deferred while the database was down.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"veristat/internal/cache"
	"veristat/internal/config"
	"veristat/internal/database"
	"veristat/internal/repository"
	"veristat/internal/service"
)

func main() {
	userID := flag.String("user", "", "Reconcile a single user ID (default: all known users)")
	drain := flag.Bool("drain", false, "Replay deferred scan writes before reconciling")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall run timeout")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	cache.InitRedis(cfg.RedisURL)

	statsRepo := repository.NewStatsRepository(db)
	scanRepo := repository.NewScanRepository(db)
	reconciler := service.NewReconcileService(db, statsRepo, scanRepo)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *drain {
		replayed, err := reconciler.DrainPendingScans(ctx)
		if err != nil {
			log.Fatalf("Drain failed after replaying %d scans: %v", replayed, err)
		}
		log.Printf("Replayed %d deferred scans", replayed)
	}

	if *userID != "" {
		stats, err := reconciler.Recalculate(ctx, *userID)
		if err != nil {
			log.Fatalf("Reconcile failed for %s: %v", *userID, err)
		}
		log.Printf("Reconciled %s: scans=%d posts=%d likes=%d",
			stats.UserID, stats.ScanCount, stats.PostCount, stats.TotalLikesReceived)
		return
	}

	processed, err := reconciler.RecalculateAll(ctx)
	if err != nil {
		log.Fatalf("Reconcile run failed: %v", err)
	}
	log.Printf("Reconciled %d users", processed)
}
