package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, "ss")
	return store, mr, rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func testSession(digest string) *Session {
	now := time.Now()
	return &Session{
		TokenDigest: digest,
		UserID:      "u-1",
		UserAgent:   "test-agent",
		IPAddress:   "192.0.2.10",
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(time.Hour).Unix(),
	}
}

func TestSaveGetDelete(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession("digest-1")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save session: %v", err)
	}

	got, err := store.Get(ctx, "digest-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.UserID != sess.UserID || got.TokenDigest != "digest-1" {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := store.Delete(ctx, "digest-1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	if _, err := store.Get(ctx, "digest-1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestDeleteIdempotentCounterAndIndex(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	sess := testSession("digest-1")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := store.Delete(ctx, "digest-1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(ctx, "digest-1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	count, err := store.SessionCount(ctx)
	if err != nil {
		t.Fatalf("session count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero session count, got %d", count)
	}

	active, err := store.ActiveSessionCount(ctx, sess.UserID)
	if err != nil {
		t.Fatalf("active session count: %v", err)
	}
	if active != 0 {
		t.Fatalf("expected empty user index, got %d entries", active)
	}
}

func TestGetExpiredSessionRemoved(t *testing.T) {
	store, _, rdb, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	// Seed a record whose embedded expiry is already in the past while the
	// Redis key itself still exists; Get has to enforce the boundary.
	expired := testSession("digest-exp")
	expired.ExpiresAt = time.Now().Add(-time.Second).Unix()
	data, err := Encode(expired)
	if err != nil {
		t.Fatalf("encode expired: %v", err)
	}
	if err := rdb.Set(ctx, "ss:digest-exp", data, time.Minute).Err(); err != nil {
		t.Fatalf("seed expired blob: %v", err)
	}

	if _, err := store.Get(ctx, "digest-exp"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil for expired session, got %v", err)
	}

	if exists, _ := rdb.Exists(ctx, "ss:digest-exp").Result(); exists != 0 {
		t.Fatal("expected expired session key to be removed")
	}
}

func TestActiveBoundary(t *testing.T) {
	now := time.Now().Unix()
	sess := &Session{ExpiresAt: now}

	if sess.Active(now-1) != true {
		t.Fatal("expected session active one second before expiry")
	}
	if sess.Active(now) {
		t.Fatal("expected session inactive exactly at expiry")
	}
	if sess.Active(now + 1) {
		t.Fatal("expected session inactive one second after expiry")
	}
}

func TestDeleteAllForUser(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	for _, digest := range []string{"d1", "d2", "d3"} {
		if err := store.Save(ctx, testSession(digest)); err != nil {
			t.Fatalf("save %s: %v", digest, err)
		}
	}

	if err := store.DeleteAllForUser(ctx, "u-1"); err != nil {
		t.Fatalf("delete all: %v", err)
	}

	for _, digest := range []string{"d1", "d2", "d3"} {
		if _, err := store.Get(ctx, digest); !errors.Is(err, redis.Nil) {
			t.Fatalf("expected %s gone, got %v", digest, err)
		}
	}

	count, err := store.SessionCount(ctx)
	if err != nil {
		t.Fatalf("session count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero count after logout-all, got %d", count)
	}
}

func TestSweepUserIndex(t *testing.T) {
	store, mr, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testSession("live")); err != nil {
		t.Fatalf("save live: %v", err)
	}
	if err := store.Save(ctx, testSession("doomed")); err != nil {
		t.Fatalf("save doomed: %v", err)
	}

	// Simulate a TTL expiry that fired without touching the index.
	mr.Del("ss:doomed")

	removed, err := store.SweepUserIndex(ctx, "u-1")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 index entry removed, got %d", removed)
	}

	active, err := store.ActiveSessionCount(ctx, "u-1")
	if err != nil {
		t.Fatalf("active count: %v", err)
	}
	if active != 1 {
		t.Fatalf("expected 1 live index entry, got %d", active)
	}
}

func TestIndexedUserIDsAndEstimate(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	a := testSession("da")
	b := testSession("db")
	b.UserID = "u-2"
	if err := store.Save(ctx, a); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := store.Save(ctx, b); err != nil {
		t.Fatalf("save b: %v", err)
	}

	users, err := store.IndexedUserIDs(ctx)
	if err != nil {
		t.Fatalf("indexed users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 indexed users, got %v", users)
	}

	total, err := store.EstimateActiveSessions(ctx)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected estimate 2, got %d", total)
	}
}
