package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/caddelle/ops-backend/internal/events"
	"github.com/caddelle/ops-backend/internal/events/idempotency"
	"github.com/caddelle/ops-backend/internal/events/payloads"
	pkgdb "github.com/caddelle/ops-backend/pkg/db"
	"github.com/caddelle/ops-backend/pkg/db/models"
	"github.com/caddelle/ops-backend/pkg/enums"
	"github.com/caddelle/ops-backend/pkg/logger"
)

// memoryStore is a map-backed idempotency store.
type memoryStore struct {
	mtx  sync.Mutex
	keys map[string]struct{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]struct{}{}}
}

func (s *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "cad:idempotency:" + scope + ":" + id
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

type recordingCache struct {
	mtx     sync.Mutex
	deleted []string
}

func (c *recordingCache) CacheKey(family, id string) string {
	return "cad:cache:" + family + ":" + id
}

func (c *recordingCache) Del(_ context.Context, keys ...string) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.deleted = append(c.deleted, keys...)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
}

func setupConsumer(t *testing.T) (*Consumer, *pkgdb.Client, *memoryStore, *recordingCache) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`
CREATE TABLE IF NOT EXISTS client_records (
  uuid TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  segment TEXT,
  updated_at DATETIME
);`).Error)
	dbClient := pkgdb.NewWithConn(conn)

	registry := events.NewRegistry()
	payloads.RegisterAll(registry)

	store := newMemoryStore()
	guard, err := idempotency.NewManager(store, time.Hour)
	require.NoError(t, err)

	cache := &recordingCache{}
	consumer, err := New(Params{
		DB:       dbClient,
		Registry: registry,
		Guard:    guard,
		Cache:    cache,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	return consumer, dbClient, store, cache
}

func clientEvent(t *testing.T, aggregateID string, eventType enums.EventType, payload any) models.DomainEvent {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return models.DomainEvent{
		ID:              uuid.New(),
		AggregateRootID: aggregateID,
		EventType:       eventType,
		Actor:           "system",
		Payload:         raw,
		RecordedAt:      time.Now().UTC(),
	}
}

func loadRecord(t *testing.T, dbClient *pkgdb.Client, aggregateID string) models.ClientRecord {
	t.Helper()
	var record models.ClientRecord
	require.NoError(t, dbClient.DB().First(&record, "uuid = ?", aggregateID).Error)
	return record
}

func TestApply_CreatedThenUpdated(t *testing.T) {
	consumer, dbClient, _, cache := setupConsumer(t)
	ctx := context.Background()
	aggregateID := uuid.NewString()

	created := clientEvent(t, aggregateID, enums.EventClientCreated, payloads.ClientCreated{Name: "Globex", Segment: "retail"})
	require.NoError(t, consumer.Apply(ctx, created))

	record := loadRecord(t, dbClient, aggregateID)
	require.Equal(t, "Globex", record.Name)
	require.Equal(t, "retail", record.Segment)

	updated := clientEvent(t, aggregateID, enums.EventClientUpdated, payloads.ClientUpdated{Segment: "enterprise"})
	require.NoError(t, consumer.Apply(ctx, updated))

	record = loadRecord(t, dbClient, aggregateID)
	require.Equal(t, "Globex", record.Name, "unset fields stay untouched")
	require.Equal(t, "enterprise", record.Segment)

	require.Len(t, cache.deleted, 2)
	require.Equal(t, "cad:cache:client:"+aggregateID, cache.deleted[0])
}

func TestApply_RedeliveryIsSkipped(t *testing.T) {
	consumer, dbClient, _, _ := setupConsumer(t)
	ctx := context.Background()
	aggregateID := uuid.NewString()

	created := clientEvent(t, aggregateID, enums.EventClientCreated, payloads.ClientCreated{Name: "Globex"})
	require.NoError(t, consumer.Apply(ctx, created))

	// Mutate the row out of band, then redeliver the same event. An
	// idempotent consumer must not re-project it.
	require.NoError(t, dbClient.DB().Model(&models.ClientRecord{}).
		Where("uuid = ?", aggregateID).Update("name", "changed").Error)
	require.NoError(t, consumer.Apply(ctx, created))

	record := loadRecord(t, dbClient, aggregateID)
	require.Equal(t, "changed", record.Name)
}

func TestApply_SameEventTwiceConvergesToSameState(t *testing.T) {
	consumer, dbClient, store, _ := setupConsumer(t)
	ctx := context.Background()
	aggregateID := uuid.NewString()

	created := clientEvent(t, aggregateID, enums.EventClientCreated, payloads.ClientCreated{Name: "Globex", Segment: "retail"})
	require.NoError(t, consumer.Apply(ctx, created))
	before := loadRecord(t, dbClient, aggregateID)

	// Even when the marker has expired, re-applying the same event is a
	// no-op on visible state: the projection upserts by aggregate id.
	store.keys = map[string]struct{}{}
	require.NoError(t, consumer.Apply(ctx, created))
	after := loadRecord(t, dbClient, aggregateID)

	require.Equal(t, before.Name, after.Name)
	require.Equal(t, before.Segment, after.Segment)
}

func TestApply_DecodeFailureClearsMarker(t *testing.T) {
	consumer, _, store, _ := setupConsumer(t)
	ctx := context.Background()

	event := models.DomainEvent{
		ID:              uuid.New(),
		AggregateRootID: uuid.NewString(),
		EventType:       enums.EventClientCreated,
		Actor:           "system",
		Payload:         json.RawMessage(`{"name":`),
		RecordedAt:      time.Now().UTC(),
	}
	require.Error(t, consumer.Apply(ctx, event))

	// The marker was cleared so a redelivery gets another attempt.
	require.Empty(t, store.keys)
}

func TestApply_UnhandledTypeIsIgnored(t *testing.T) {
	consumer, _, _, cache := setupConsumer(t)

	event := clientEvent(t, uuid.NewString(), enums.EventUserCreated, payloads.UserCreated{FullName: "Ana Reyes", Email: "ana@caddelle.io"})
	require.NoError(t, consumer.Apply(context.Background(), event))
	require.Len(t, cache.deleted, 1, "cache still invalidated for the aggregate")
}

func TestApply_UpdateWithNoChangesIsNoOp(t *testing.T) {
	consumer, dbClient, _, _ := setupConsumer(t)
	ctx := context.Background()
	aggregateID := uuid.NewString()

	created := clientEvent(t, aggregateID, enums.EventClientCreated, payloads.ClientCreated{Name: "Globex"})
	require.NoError(t, consumer.Apply(ctx, created))

	empty := clientEvent(t, aggregateID, enums.EventClientUpdated, payloads.ClientUpdated{})
	require.NoError(t, consumer.Apply(ctx, empty))

	record := loadRecord(t, dbClient, aggregateID)
	require.Equal(t, "Globex", record.Name)
}
