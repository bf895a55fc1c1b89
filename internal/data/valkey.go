package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/anthropics/emoji-gateway/internal/biz/domain"
	"github.com/anthropics/emoji-gateway/internal/biz/repo"
)

const keyPrefix = "bot:emoji:"

// Deduplication markers outlive any realistic redelivery window; independent
// of the conversation state TTL.
const processedTTL = 5 * time.Minute

// valkeyStateRepo implements the conversation store over a Valkey
// (Redis-compatible) backend. Each operation targets a single key.
type valkeyStateRepo struct {
	client     *redis.Client
	stateTTL   time.Duration
	rateMax    int
	rateWindow time.Duration
	log        *zap.Logger

	now func() time.Time
}

// NewStateRepo creates a conversation store backed by the given Valkey address
func NewStateRepo(addr, password string, stateTTL time.Duration, rateMax int, rateWindow time.Duration, log *zap.Logger) repo.StateRepo {
	client := redis.NewClient(&redis.Options{
		Addr:       addr,
		Password:   password,
		MaxRetries: 3,
	})

	return &valkeyStateRepo{
		client:     client,
		stateTTL:   stateTTL,
		rateMax:    rateMax,
		rateWindow: rateWindow,
		log:        log,
		now:        time.Now,
	}
}

func stateKey(userID string) string {
	return keyPrefix + "state:" + userID
}

func rateLimitKey(userID string) string {
	return keyPrefix + "ratelimit:" + userID
}

func processedKey(noteID string) string {
	return keyPrefix + "processed:" + noteID
}

// GetState reads and deserializes the pending state for a user.
// A corrupt record is deleted and reported as absent.
func (r *valkeyStateRepo) GetState(ctx context.Context, userID string) (*domain.ConversationState, error) {
	data, err := r.client.Get(ctx, stateKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		r.log.Warn("failed to parse state, clearing", zap.String("userId", userID))
		if delErr := r.DeleteState(ctx, userID); delErr != nil {
			r.log.Error("failed to clear corrupt state", zap.Error(delErr))
		}
		return nil, nil
	}

	return &state, nil
}

// SetState serializes and writes the state with the configured TTL
func (r *valkeyStateRepo) SetState(ctx context.Context, userID string, state *domain.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := r.client.Set(ctx, stateKey(userID), data, r.stateTTL).Err(); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

// DeleteState removes the state unconditionally
func (r *valkeyStateRepo) DeleteState(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

// CheckRateLimit admits a request against the user's sliding window.
// Entries older than the window are pruned before counting; an admission
// records a uniquely-tokened entry and refreshes the window expiry.
func (r *valkeyStateRepo) CheckRateLimit(ctx context.Context, userID string) (bool, error) {
	key := rateLimitKey(userID)
	nowMs := r.now().UnixMilli()
	windowMs := r.rateWindow.Milliseconds()

	cutoff := strconv.FormatInt(nowMs-windowMs, 10)
	if err := r.client.ZRemRangeByScore(ctx, key, "0", cutoff).Err(); err != nil {
		return false, fmt.Errorf("prune rate limit window: %w", err)
	}

	count, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("count rate limit window: %w", err)
	}
	if count >= int64(r.rateMax) {
		return false, nil
	}

	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())
	if err := r.client.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: member}).Err(); err != nil {
		return false, fmt.Errorf("record rate limit entry: %w", err)
	}
	if err := r.client.Expire(ctx, key, r.rateWindow).Err(); err != nil {
		return false, fmt.Errorf("expire rate limit window: %w", err)
	}

	return true, nil
}

// MarkProcessed atomically creates a short-lived marker for a note id.
// SET NX succeeds only on first sighting.
func (r *valkeyStateRepo) MarkProcessed(ctx context.Context, noteID string) (bool, error) {
	created, err := r.client.SetNX(ctx, processedKey(noteID), "1", processedTTL).Result()
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	return created, nil
}

// Ping reports backend liveness; false on any failure
func (r *valkeyStateRepo) Ping(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

// Close releases the client connection
func (r *valkeyStateRepo) Close() error {
	return r.client.Close()
}
