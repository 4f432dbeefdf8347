// Package cache keeps the live leaderboard as a redis sorted set per test.
package cache

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/lshigami/padhoplus/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// maxTime bounds the time component so it never spills into the score part.
const maxTime = 9_999_999

// Leaderboard is an ordered index of submitted attempts per test. Reads may
// return no ids, in which case callers fall back to the database.
type Leaderboard interface {
	Record(ctx context.Context, testID, attemptID uint, score float64, timeTakenSeconds int) error
	// Top returns the best limit attempts plus every attempt whose weight
	// ties the last of them, so callers can settle ties and trim.
	Top(ctx context.Context, testID uint, limit int) ([]uint, error)
	// Size is the number of attempts indexed for the test.
	Size(ctx context.Context, testID uint) (int64, error)
	Close() error
}

// Key is the sorted set holding a test's attempts.
func Key(testID uint) string {
	return fmt.Sprintf("leaderboard:test:%d", testID)
}

// Weight folds score (two decimals) and time taken into one sorted set score:
// higher score first, then lower time.
func Weight(score float64, timeTakenSeconds int) float64 {
	t := timeTakenSeconds
	if t < 0 {
		t = 0
	}
	if t > maxTime {
		t = maxTime
	}
	return math.Round(score*100)*(maxTime+1) + float64(maxTime-t)
}

type redisLeaderboard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLeaderboard(rdb *redis.Client, ttl time.Duration) Leaderboard {
	return &redisLeaderboard{rdb: rdb, ttl: ttl}
}

// NewLeaderboard connects to REDIS_ADDR, or returns a no-op index when it is
// unset or unreachable.
func NewLeaderboard(cfg *config.Config) Leaderboard {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("REDIS_ADDR not set, leaderboard served from database")
		return noopLeaderboard{}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, leaderboard served from database")
		_ = rdb.Close()
		return noopLeaderboard{}
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis leaderboard index enabled")
	return NewRedisLeaderboard(rdb, 30*24*time.Hour)
}

func (l *redisLeaderboard) Record(ctx context.Context, testID, attemptID uint, score float64, timeTakenSeconds int) error {
	key := Key(testID)
	pipe := l.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: Weight(score, timeTakenSeconds), Member: strconv.FormatUint(uint64(attemptID), 10)})
	if l.ttl > 0 {
		pipe.Expire(ctx, key, l.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (l *redisLeaderboard) Top(ctx context.Context, testID uint, limit int) ([]uint, error) {
	key := Key(testID)
	top, err := l.rdb.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(top))
	seen := make(map[string]bool, len(top))
	for _, z := range top {
		m := fmt.Sprint(z.Member)
		members = append(members, m)
		seen[m] = true
	}
	if limit > 0 && len(top) == limit {
		// Equal weights come back in reverse member order, so a tie can straddle the cutoff.
		cutoff := strconv.FormatFloat(top[len(top)-1].Score, 'f', -1, 64)
		tied, err := l.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: cutoff, Max: cutoff}).Result()
		if err != nil {
			return nil, err
		}
		for _, m := range tied {
			if !seen[m] {
				members = append(members, m)
				seen[m] = true
			}
		}
	}

	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			log.Warn().Str("member", m).Uint("testID", testID).Msg("Skipping malformed leaderboard member")
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func (l *redisLeaderboard) Size(ctx context.Context, testID uint) (int64, error) {
	return l.rdb.ZCard(ctx, Key(testID)).Result()
}

func (l *redisLeaderboard) Close() error {
	return l.rdb.Close()
}

type noopLeaderboard struct{}

func NewNoopLeaderboard() Leaderboard { return noopLeaderboard{} }

func (noopLeaderboard) Record(context.Context, uint, uint, float64, int) error { return nil }
func (noopLeaderboard) Top(context.Context, uint, int) ([]uint, error)         { return nil, nil }
func (noopLeaderboard) Size(context.Context, uint) (int64, error)              { return 0, nil }
func (noopLeaderboard) Close() error                                           { return nil }
