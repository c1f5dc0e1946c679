package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	types "github.com/yungbote/neurobridge-mastery/internal/domain"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

// MasteryCache holds per-user read projections. Entries live under a
// per-user generation: readers fetch the generation before querying the
// database and read or write entries under it, and every committed attempt
// advances it with Invalidate. A projection computed from a snapshot older
// than the latest commit is therefore written under a dead generation and
// never served. A miss is (zero, false, nil).
type MasteryCache interface {
	Generation(ctx context.Context, userID uuid.UUID) (int64, error)
	GetStats(ctx context.Context, userID uuid.UUID, gen int64) (MasteryStats, bool, error)
	// SetStats stores stats for at most ttl; ttl <= 0 uses the cache default.
	SetStats(ctx context.Context, userID uuid.UUID, gen int64, stats MasteryStats, ttl time.Duration) error
	GetDifficulty(ctx context.Context, userID uuid.UUID, gen int64, skillType types.SkillType) (int, bool, error)
	SetDifficulty(ctx context.Context, userID uuid.UUID, gen int64, skillType types.SkillType, level int) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
	Close() error
}

type noopMasteryCache struct{}

func NewNoopMasteryCache() MasteryCache { return noopMasteryCache{} }

func (noopMasteryCache) Generation(context.Context, uuid.UUID) (int64, error) { return 0, nil }
func (noopMasteryCache) GetStats(context.Context, uuid.UUID, int64) (MasteryStats, bool, error) {
	return MasteryStats{}, false, nil
}
func (noopMasteryCache) SetStats(context.Context, uuid.UUID, int64, MasteryStats, time.Duration) error {
	return nil
}
func (noopMasteryCache) GetDifficulty(context.Context, uuid.UUID, int64, types.SkillType) (int, bool, error) {
	return 0, false, nil
}
func (noopMasteryCache) SetDifficulty(context.Context, uuid.UUID, int64, types.SkillType, int) error {
	return nil
}
func (noopMasteryCache) Invalidate(context.Context, uuid.UUID) error { return nil }
func (noopMasteryCache) Close() error                                { return nil }

// redisMasteryCache keeps a generation counter per user plus one string key
// per projection and generation. Entry keys carry their own TTL; the counter
// outlives them so a reset counter never revives an old entry.
type redisMasteryCache struct {
	log    *logger.Logger
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	genTTL time.Duration
}

type RedisCacheConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

func NewRedisMasteryCache(log *logger.Logger, cfg RedisCacheConfig) (MasteryCache, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisMasteryCache(log, rdb, cfg.Prefix, cfg.TTL), nil
}

func newRedisMasteryCache(log *logger.Logger, rdb *redis.Client, prefix string, ttl time.Duration) *redisMasteryCache {
	if strings.TrimSpace(prefix) == "" {
		prefix = "mastery"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisMasteryCache{
		log:    log.With("service", "RedisMasteryCache"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		genTTL: max(time.Hour, 12*ttl),
	}
}

func (c *redisMasteryCache) userKey(userID uuid.UUID) string {
	return c.prefix + ":user:" + userID.String()
}

func (c *redisMasteryCache) genKey(userID uuid.UUID) string {
	return c.userKey(userID) + ":gen"
}

func (c *redisMasteryCache) entryKey(userID uuid.UUID, gen int64, field string) string {
	return c.userKey(userID) + ":g" + strconv.FormatInt(gen, 10) + ":" + field
}

const statsField = "stats"

func difficultyField(skillType types.SkillType) string {
	return "difficulty:" + string(skillType)
}

func (c *redisMasteryCache) Generation(ctx context.Context, userID uuid.UUID) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.genKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *redisMasteryCache) GetStats(ctx context.Context, userID uuid.UUID, gen int64) (MasteryStats, bool, error) {
	raw, err := c.rdb.Get(ctx, c.entryKey(userID, gen, statsField)).Bytes()
	if errors.Is(err, redis.Nil) {
		return MasteryStats{}, false, nil
	}
	if err != nil {
		return MasteryStats{}, false, err
	}
	var out MasteryStats
	if err := json.Unmarshal(raw, &out); err != nil {
		return MasteryStats{}, false, fmt.Errorf("decode cached stats: %w", err)
	}
	return out, true, nil
}

func (c *redisMasteryCache) SetStats(ctx context.Context, userID uuid.UUID, gen int64, stats MasteryStats, ttl time.Duration) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	if ttl <= 0 || ttl > c.ttl {
		ttl = c.ttl
	}
	return c.rdb.Set(ctx, c.entryKey(userID, gen, statsField), raw, ttl).Err()
}

func (c *redisMasteryCache) GetDifficulty(ctx context.Context, userID uuid.UUID, gen int64, skillType types.SkillType) (int, bool, error) {
	raw, err := c.rdb.Get(ctx, c.entryKey(userID, gen, difficultyField(skillType))).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	level, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("decode cached difficulty: %w", err)
	}
	return level, true, nil
}

func (c *redisMasteryCache) SetDifficulty(ctx context.Context, userID uuid.UUID, gen int64, skillType types.SkillType, level int) error {
	return c.rdb.Set(ctx, c.entryKey(userID, gen, difficultyField(skillType)), strconv.Itoa(level), c.ttl).Err()
}

// Invalidate advances the user's generation. Entries of older generations
// are left to expire.
func (c *redisMasteryCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	key := c.genKey(userID)
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, c.genTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisMasteryCache) Close() error { return c.rdb.Close() }
