package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/designhub/internal/config"
	"github.com/magabrotheeeer/designhub/internal/models"
)

type testStruct struct {
	Name string
	Age  int
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cache, err := InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestSetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	expected := testStruct{Name: "Alice", Age: 30}
	require.NoError(t, cache.Set(ctx, "user:1", expected, time.Minute))

	var actual testStruct
	found, err := cache.Get(ctx, "user:1", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestGetNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out testStruct
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "key"))

	var out string
	found, err := cache.Get(ctx, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetInvalidJSON(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Db.Set(ctx, "bad", []byte("not-json"), time.Minute).Err())

	var out testStruct
	found, err := cache.Get(ctx, "bad", &out)
	assert.False(t, found)
	assert.Error(t, err)
}

func TestSetExpires(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "ttl", "v", time.Second))
	mr.FastForward(2 * time.Second)

	var out string
	found, err := cache.Get(ctx, "ttl", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInitServerInvalidAddr(t *testing.T) {
	cfg := config.RedisConnection{AddressRedis: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}
	cache, err := InitServer(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, cache)
}

type sourceStub struct {
	calls int
	snap  *models.SessionSnapshot
	err   error
	// during выполняется после чтения снимка, до возврата из source
	during func()
}

func (s *sourceStub) SessionSnapshot(_ context.Context, _ string) (*models.SessionSnapshot, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := *s.snap
	if s.during != nil {
		during := s.during
		s.during = nil
		during()
	}
	return &out, nil
}

func TestSnapshotCache_ReadThroughAndInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()
	src := &sourceStub{snap: &models.SessionSnapshot{Role: models.RoleUser, SubscriptionStatus: models.StatusPending}}
	sc := NewSnapshotCache(src, cache, time.Minute, newNoopLogger())

	snap, err := sc.SessionSnapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, snap.SubscriptionStatus)

	src.snap = &models.SessionSnapshot{Role: models.RoleUser, SubscriptionStatus: models.StatusActive}
	snap, err = sc.SessionSnapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, snap.SubscriptionStatus, "served from cache")
	assert.Equal(t, 1, src.calls)

	require.NoError(t, sc.InvalidateSession(ctx, "u1"))
	snap, err = sc.SessionSnapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, snap.SubscriptionStatus)
	assert.Equal(t, 2, src.calls)
}

func TestSnapshotCache_RedisDownFallsBackToSource(t *testing.T) {
	cache, mr := setupTestCache(t)
	mr.Close()
	src := &sourceStub{snap: &models.SessionSnapshot{Role: models.RoleAdmin, SubscriptionStatus: models.StatusActive}}
	sc := NewSnapshotCache(src, cache, time.Minute, newNoopLogger())

	snap, err := sc.SessionSnapshot(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, snap.Role)
}

func TestSnapshotCache_SourceErrorIsReturned(t *testing.T) {
	cache, _ := setupTestCache(t)
	src := &sourceStub{err: errors.New("db down")}
	sc := NewSnapshotCache(src, cache, time.Minute, newNoopLogger())

	_, err := sc.SessionSnapshot(context.Background(), "u1")
	assert.Error(t, err)
}

func TestSnapshotCache_InvalidationDuringReadIsNotLost(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()
	src := &sourceStub{snap: &models.SessionSnapshot{Role: models.RoleUser, SubscriptionStatus: models.StatusPending}}
	sc := NewSnapshotCache(src, cache, time.Minute, newNoopLogger())

	// вебхук оплаты коммитит подписку и инвалидирует кэш, пока идёт чтение старого снимка
	src.during = func() {
		src.snap = &models.SessionSnapshot{Role: models.RoleUser, SubscriptionStatus: models.StatusActive}
		require.NoError(t, sc.InvalidateSession(ctx, "u1"))
	}

	snap, err := sc.SessionSnapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, snap.SubscriptionStatus)

	snap, err = sc.SessionSnapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, snap.SubscriptionStatus)
	assert.Equal(t, 2, src.calls)

	snap, err = sc.SessionSnapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, snap.SubscriptionStatus)
	assert.Equal(t, 2, src.calls, "fresh snapshot is cached")
}

func TestCounterAndIncr(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	n, err := cache.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = cache.Incr(ctx, "gen", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, mr.TTL("gen"))

	n, err = cache.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
