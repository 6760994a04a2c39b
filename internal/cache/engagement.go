package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsTTL is how long a cached UserStats projection may serve reads.
// Kept short: the cache is a read accelerator, the projection row in the
// database is authoritative.
const StatsTTL = 30 * time.Second

// IdempotencyTTL bounds how long a ToggleLike request token replays its
// stored outcome.
const IdempotencyTTL = 10 * time.Minute

const pendingScansKey = "scans:pending"

// UserStatsKey returns the cache key for a user's stats projection.
func UserStatsKey(userID string) string {
	return fmt.Sprintf("stats:user:%s", userID)
}

// InvalidateUserStats drops the cached projection for the user.
func InvalidateUserStats(ctx context.Context, userID string) {
	Invalidate(ctx, UserStatsKey(userID))
}

// EnqueuePendingScan parks a scan event whose tracking write failed so a
// later reconcile pass can replay it. Best-effort: with Redis down the
// event is only recoverable via a full recalculation.
func EnqueuePendingScan(ctx context.Context, payload any) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return client.LPush(ctx, pendingScansKey, b).Err()
}

// DequeuePendingScan pops one parked scan event into dest.
// Returns (false, nil) when the queue is empty or Redis is unavailable.
func DequeuePendingScan(ctx context.Context, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.RPop(ctx, pendingScansKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// requestTokenPending marks a token whose claiming call has not committed
// its outcome yet. Never valid JSON, so it cannot collide with an outcome.
const requestTokenPending = "pending"

// ClaimRequestToken reserves the client-supplied token BEFORE the operation
// executes. Returns (true, nil) when this call now owns the token and must
// run the operation, (false, nil) when another call holds it, in which case
// LookupRequestToken yields that call's outcome once stored. Fail-open
// without Redis.
func ClaimRequestToken(ctx context.Context, token string) (bool, error) {
	if client == nil {
		return true, nil
	}
	return client.SetNX(ctx, requestTokenKey(token), requestTokenPending, IdempotencyTTL).Result()
}

// StoreRequestOutcome records the outcome under a token this call claimed.
func StoreRequestOutcome(ctx context.Context, token string, outcome any) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return client.Set(ctx, requestTokenKey(token), b, IdempotencyTTL).Err()
}

// ReleaseRequestToken frees a claimed token whose operation failed, so the
// client's retry executes for real instead of waiting on an outcome that
// will never arrive.
func ReleaseRequestToken(ctx context.Context, token string) {
	Invalidate(ctx, requestTokenKey(token))
}

// LookupRequestToken fetches the outcome stored under the token.
// pending reports a token that is claimed but whose outcome has not
// committed yet.
func LookupRequestToken(ctx context.Context, token string, dest any) (found, pending bool, err error) {
	if client == nil {
		return false, false, nil
	}
	s, err := client.Get(ctx, requestTokenKey(token)).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	if s == requestTokenPending {
		return false, true, nil
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, false, err
	}
	return true, false, nil
}

func requestTokenKey(token string) string {
	return fmt.Sprintf("idem:like:%s", token)
}
