package services

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-mastery/internal/data/repos/testutil"
	types "github.com/yungbote/neurobridge-mastery/internal/domain"
)

func TestRedisMasteryCacheKeys(t *testing.T) {
	c := newRedisMasteryCache(testutil.Logger(t), nil, "", 0)
	userID := uuid.MustParse("7d3c2a58-9b0e-4d7e-8a51-3f4a0b1c2d3e")
	if got := c.genKey(userID); got != "mastery:user:7d3c2a58-9b0e-4d7e-8a51-3f4a0b1c2d3e:gen" {
		t.Fatalf("genKey: got=%q", got)
	}
	if got := c.entryKey(userID, 3, difficultyField(types.SkillTypeNamesFaces)); got != "mastery:user:7d3c2a58-9b0e-4d7e-8a51-3f4a0b1c2d3e:g3:difficulty:NAMES_FACES" {
		t.Fatalf("entryKey: got=%q", got)
	}
	if c.ttl != 5*time.Minute || c.genTTL != time.Hour {
		t.Fatalf("default ttls: want=5m/1h got=%v/%v", c.ttl, c.genTTL)
	}
	if long := newRedisMasteryCache(testutil.Logger(t), nil, "p", 10*time.Minute); long.genTTL != 2*time.Hour {
		t.Fatalf("gen ttl must outlive entries: got=%v", long.genTTL)
	}
}

func TestNewRedisMasteryCacheRequiresAddr(t *testing.T) {
	if _, err := NewRedisMasteryCache(testutil.Logger(t), RedisCacheConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestRedisMasteryCacheIntegration(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	prefix := "mastery-test-" + uuid.NewString()[:8]
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	c := newRedisMasteryCache(testutil.Logger(t), rdb, prefix, time.Minute)
	t.Cleanup(func() { _ = c.Close() })

	userID := uuid.New()
	gen, err := c.Generation(ctx, userID)
	if err != nil || gen != 0 {
		t.Fatalf("initial generation: want=0 got=%d err=%v", gen, err)
	}
	if _, ok, err := c.GetStats(ctx, userID, gen); err != nil || ok {
		t.Fatalf("empty stats: ok=%v err=%v", ok, err)
	}
	want := MasteryStats{TotalSkills: 4, MasteredSkills: 1, SkillsDueForReview: 2, AverageMastery: 0.55, SkillsNeedingPractice: 3}
	if err := c.SetStats(ctx, userID, gen, want, 10*time.Second); err != nil {
		t.Fatalf("SetStats: %v", err)
	}
	if err := c.SetDifficulty(ctx, userID, gen, types.SkillTypeNamesFaces, 7); err != nil {
		t.Fatalf("SetDifficulty: %v", err)
	}
	got, ok, err := c.GetStats(ctx, userID, gen)
	if err != nil || !ok || got != want {
		t.Fatalf("GetStats: want=%+v got=%+v ok=%v err=%v", want, got, ok, err)
	}
	level, ok, err := c.GetDifficulty(ctx, userID, gen, types.SkillTypeNamesFaces)
	if err != nil || !ok || level != 7 {
		t.Fatalf("GetDifficulty: want=7 got=%d ok=%v err=%v", level, ok, err)
	}
	if ttl := rdb.TTL(ctx, c.entryKey(userID, gen, statsField)).Val(); ttl <= 0 || ttl > 10*time.Second {
		t.Fatalf("stats ttl: want<=10s got=%v", ttl)
	}

	if err := c.Invalidate(ctx, userID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	next, err := c.Generation(ctx, userID)
	if err != nil || next != gen+1 {
		t.Fatalf("generation after invalidate: want=%d got=%d err=%v", gen+1, next, err)
	}
	if _, ok, _ := c.GetStats(ctx, userID, next); ok {
		t.Fatalf("stats visible under new generation")
	}
	if _, ok, _ := c.GetDifficulty(ctx, userID, next, types.SkillTypeNamesFaces); ok {
		t.Fatalf("difficulty visible under new generation")
	}

	// A write computed under the old generation lands where no reader looks.
	if err := c.SetStats(ctx, userID, gen, want, 0); err != nil {
		t.Fatalf("SetStats(old gen): %v", err)
	}
	if _, ok, _ := c.GetStats(ctx, userID, next); ok {
		t.Fatalf("old generation write leaked into current generation")
	}
}
