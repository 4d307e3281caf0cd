package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/models"
)

const (
	sessionKeyPrefix    = "session:"
	generationKeyPrefix = "session-gen:"
)

// SnapshotSource отдаёт актуальные роль и статус подписки пользователя из хранилища.
type SnapshotSource interface {
	SessionSnapshot(ctx context.Context, userID string) (*models.SessionSnapshot, error)
}

// Store описывает операции кэша, нужные SnapshotCache.
type Store interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
	Counter(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string, expiration time.Duration) (int64, error)
}

// snapshotEntry снимок вместе с поколением, под которым он был прочитан.
type snapshotEntry struct {
	Generation int64                  `json:"generation"`
	Snapshot   models.SessionSnapshot `json:"snapshot"`
}

// SnapshotCache кэширует снимки сессии на ttl. Ошибки Redis не ломают чтение:
// при любой из них снимок берётся напрямую из source.
//
// Каждая инвалидация увеличивает поколение пользователя. Снимок, прочитанный
// из source до инвалидации, записывается со старым поколением и при следующем
// чтении считается промахом.
type SnapshotCache struct {
	source SnapshotSource
	store  Store
	ttl    time.Duration
	log    *slog.Logger
}

// NewSnapshotCache создаёт кэш снимков.
func NewSnapshotCache(source SnapshotSource, store Store, ttl time.Duration, log *slog.Logger) *SnapshotCache {
	return &SnapshotCache{source: source, store: store, ttl: ttl, log: log}
}

// SessionKey возвращает ключ снимка пользователя.
func SessionKey(userID string) string {
	return sessionKeyPrefix + userID
}

func generationKey(userID string) string {
	return generationKeyPrefix + userID
}

// SessionSnapshot читает снимок из кэша, а при промахе из source с записью в кэш.
func (c *SnapshotCache) SessionSnapshot(ctx context.Context, userID string) (*models.SessionSnapshot, error) {
	const op = "cache.SessionSnapshot"
	log := c.log.With(slog.String("op", op), slog.String("user_id", userID))

	// поколение читается до source, иначе запись не отличить от устаревшей
	gen, err := c.store.Counter(ctx, generationKey(userID))
	if err != nil {
		log.Warn("snapshot generation read failed", sl.Err(err))
		return c.source.SessionSnapshot(ctx, userID)
	}

	var entry snapshotEntry
	found, err := c.store.Get(ctx, SessionKey(userID), &entry)
	if err != nil {
		log.Warn("snapshot cache read failed", sl.Err(err))
	}
	if found && entry.Generation == gen {
		return &entry.Snapshot, nil
	}

	fresh, err := c.source.SessionSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, SessionKey(userID), snapshotEntry{Generation: gen, Snapshot: *fresh}, c.ttl); err != nil {
		log.Warn("snapshot cache write failed", sl.Err(err))
	}
	return fresh, nil
}

// InvalidateSession сдвигает поколение и удаляет снимок пользователя.
// Вызывается после записи роли или подписки.
func (c *SnapshotCache) InvalidateSession(ctx context.Context, userID string) error {
	// счётчик живёт дольше любого снимка, записанного под старым поколением
	if _, err := c.store.Incr(ctx, generationKey(userID), max(2*c.ttl, time.Hour)); err != nil {
		return err
	}
	return c.store.Invalidate(ctx, SessionKey(userID))
}
