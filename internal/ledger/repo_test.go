package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgdb "github.com/caddelle/ops-backend/pkg/db"
	"github.com/caddelle/ops-backend/pkg/db/models"
	"github.com/caddelle/ops-backend/pkg/enums"
	pkgerrors "github.com/caddelle/ops-backend/pkg/errors"
)

func setupLedgerTestDB(t *testing.T) *pkgdb.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, conn.Exec(`
CREATE TABLE IF NOT EXISTS domain_events (
  id TEXT PRIMARY KEY,
  aggregate_root_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  actor TEXT NOT NULL,
  payload TEXT NOT NULL,
  effective_date DATETIME,
  recorded_at DATETIME
);`).Error)

	return pkgdb.NewWithConn(conn)
}

func newEvent(aggregateID string, eventType enums.EventType, recordedAt time.Time) *models.DomainEvent {
	return &models.DomainEvent{
		ID:              uuid.New(),
		AggregateRootID: aggregateID,
		EventType:       eventType,
		Actor:           "system",
		Payload:         json.RawMessage(`{}`),
		RecordedAt:      recordedAt,
	}
}

func TestCreateAndGetByID(t *testing.T) {
	repo := NewRepository(setupLedgerTestDB(t))
	ctx := context.Background()

	event := newEvent(uuid.NewString(), enums.EventClientCreated, time.Now().UTC())
	event.Payload = json.RawMessage(`{"name":"Globex"}`)
	require.NoError(t, repo.Create(ctx, event))

	stored, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	require.Equal(t, event.AggregateRootID, stored.AggregateRootID)
	require.Equal(t, enums.EventClientCreated, stored.EventType)
	require.JSONEq(t, `{"name":"Globex"}`, string(stored.Payload))
}

func TestCreate_AssignsMissingID(t *testing.T) {
	repo := NewRepository(setupLedgerTestDB(t))

	event := newEvent(uuid.NewString(), enums.EventUserCreated, time.Now().UTC())
	event.ID = uuid.Nil
	require.NoError(t, repo.Create(context.Background(), event))
	require.NotEqual(t, uuid.Nil, event.ID)
}

func TestCreate_DuplicateIDConflicts(t *testing.T) {
	repo := NewRepository(setupLedgerTestDB(t))
	ctx := context.Background()

	event := newEvent(uuid.NewString(), enums.EventClientCreated, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, event))

	dup := newEvent(event.AggregateRootID, enums.EventClientUpdated, time.Now().UTC())
	dup.ID = event.ID
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestGetByID_NotFound(t *testing.T) {
	repo := NewRepository(setupLedgerTestDB(t))

	_, err := repo.GetByID(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestListByAggregate_OrderedOldestFirst(t *testing.T) {
	repo := NewRepository(setupLedgerTestDB(t))
	ctx := context.Background()

	aggregateID := uuid.NewString()
	base := time.Date(2026, time.February, 1, 12, 0, 0, 0, time.UTC)

	second := newEvent(aggregateID, enums.EventClientUpdated, base.Add(time.Minute))
	first := newEvent(aggregateID, enums.EventClientCreated, base)
	other := newEvent(uuid.NewString(), enums.EventClientCreated, base)

	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, other))
	require.NoError(t, repo.Create(ctx, first))

	history, err := repo.ListByAggregate(ctx, aggregateID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, first.ID, history[0].ID)
	require.Equal(t, second.ID, history[1].ID)
}

func TestListByAggregate_EmptyHistory(t *testing.T) {
	repo := NewRepository(setupLedgerTestDB(t))

	history, err := repo.ListByAggregate(context.Background(), uuid.NewString())
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestWithTx_RollbackDiscardsEvent(t *testing.T) {
	dbClient := setupLedgerTestDB(t)
	repo := NewRepository(dbClient)
	ctx := context.Background()

	event := newEvent(uuid.NewString(), enums.EventClientCreated, time.Now().UTC())
	err := dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := repo.WithTx(tx).Create(ctx, event); err != nil {
			return err
		}
		return fmt.Errorf("force rollback")
	})
	require.Error(t, err)

	_, err = repo.GetByID(ctx, event.ID)
	require.Error(t, err)
}
