package stores

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newChallengeStoreTest(t *testing.T) (*ChallengeStore, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewChallengeStore(rdb, "pr")
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func testChallenge() *ChallengeRecord {
	now := time.Now()
	return &ChallengeRecord{
		UserID:    "u-1",
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(24 * time.Hour).Unix(),
	}
}

func TestSaveConsumeOnce(t *testing.T) {
	store, _, done := newChallengeStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, "digest-1", testChallenge()); err != nil {
		t.Fatalf("save: %v", err)
	}

	record, err := store.Consume(ctx, "digest-1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if record.UserID != "u-1" {
		t.Fatalf("unexpected record: %+v", record)
	}

	if _, err := store.Consume(ctx, "digest-1"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected second consume to fail, got %v", err)
	}
}

func TestConsumeUnknownDigest(t *testing.T) {
	store, _, done := newChallengeStoreTest(t)
	defer done()

	if _, err := store.Consume(context.Background(), "missing"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestConsumeExpiredRecord(t *testing.T) {
	store, mr, done := newChallengeStoreTest(t)
	defer done()
	ctx := context.Background()

	record := testChallenge()
	record.ExpiresAt = time.Now().Add(time.Second).Unix()
	if err := store.Save(ctx, "digest-exp", record); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(2 * time.Second)

	if _, err := store.Consume(ctx, "digest-exp"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected expired challenge rejected, got %v", err)
	}
}

func TestConcurrentConsumeSingleWinner(t *testing.T) {
	store, _, done := newChallengeStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, "digest-race", testChallenge()); err != nil {
		t.Fatalf("save: %v", err)
	}

	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, "digest-race"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestGetDoesNotConsume(t *testing.T) {
	store, _, done := newChallengeStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, "digest-1", testChallenge()); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := store.Get(ctx, "digest-1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := store.Get(ctx, "digest-1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if _, err := store.Consume(ctx, "digest-1"); err != nil {
		t.Fatalf("consume after get: %v", err)
	}
}

func TestSweepExpired(t *testing.T) {
	store, _, done := newChallengeStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, "digest-live", testChallenge()); err != nil {
		t.Fatalf("save live: %v", err)
	}

	// A record whose embedded expiry passed but whose key lingers.
	stale := testChallenge()
	stale.ExpiresAt = time.Now().Add(-time.Hour).Unix()
	encoded, err := encodeChallengeRecord(stale)
	if err != nil {
		t.Fatalf("encode stale: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: storeAddr(t, store)})
	defer rdb.Close()
	if err := rdb.Set(ctx, "pr:digest-stale", encoded, time.Hour).Err(); err != nil {
		t.Fatalf("seed stale: %v", err)
	}

	removed, err := store.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	if _, err := store.Get(ctx, "digest-live"); err != nil {
		t.Fatalf("live record should survive sweep: %v", err)
	}
}

func storeAddr(t *testing.T, store *ChallengeStore) string {
	t.Helper()
	client, ok := store.redis.(*redis.Client)
	if !ok {
		t.Fatal("expected *redis.Client in test store")
	}
	return client.Options().Addr
}
