package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/caddelle/ops-backend/pkg/db/models"
	"github.com/caddelle/ops-backend/pkg/enums"
)

type recordingConsumer struct {
	name string

	mtx    sync.Mutex
	events []models.DomainEvent

	failOn  enums.EventType
	panicOn enums.EventType
}

func (c *recordingConsumer) Name() string { return c.name }

func (c *recordingConsumer) Apply(_ context.Context, event models.DomainEvent) error {
	if c.panicOn != "" && event.EventType == c.panicOn {
		panic("consumer exploded")
	}
	if c.failOn != "" && event.EventType == c.failOn {
		return errors.New("apply failed")
	}
	c.mtx.Lock()
	c.events = append(c.events, event)
	c.mtx.Unlock()
	return nil
}

func (c *recordingConsumer) seen() []models.DomainEvent {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return append([]models.DomainEvent(nil), c.events...)
}

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus, err := NewBus(BusParams{QueueSize: 16, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	return bus
}

func testEvent(eventType enums.EventType, aggregateID string) models.DomainEvent {
	return models.DomainEvent{
		ID:              uuid.New(),
		AggregateRootID: aggregateID,
		EventType:       eventType,
		RecordedAt:      time.Now().UTC(),
	}
}

func drain(t *testing.T, bus *Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bus.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestBus_DeliversInPublishOrder(t *testing.T) {
	bus := newTestBus(t)
	consumer := &recordingConsumer{name: "recorder"}
	if err := bus.Subscribe(AddressWork, consumer); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	var published []models.DomainEvent
	for i := 0; i < 50; i++ {
		event := testEvent(enums.EventWorkLogged, fmt.Sprintf("agg-%d", i))
		published = append(published, event)
		if err := bus.Publish(context.Background(), AddressWork, event); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	drain(t, bus)

	seen := consumer.seen()
	if len(seen) != len(published) {
		t.Fatalf("expected %d deliveries, got %d", len(published), len(seen))
	}
	for i := range published {
		if seen[i].ID != published[i].ID {
			t.Fatalf("delivery %d out of order: got %s, want %s", i, seen[i].ID, published[i].ID)
		}
	}
}

func TestBus_FailingConsumerDoesNotBlockOthers(t *testing.T) {
	bus := newTestBus(t)
	failing := &recordingConsumer{name: "failing", failOn: enums.EventClientCreated}
	healthy := &recordingConsumer{name: "healthy"}
	if err := bus.Subscribe(AddressClients, failing); err != nil {
		t.Fatalf("Subscribe failing: %v", err)
	}
	if err := bus.Subscribe(AddressClients, healthy); err != nil {
		t.Fatalf("Subscribe healthy: %v", err)
	}

	if err := bus.Publish(context.Background(), AddressClients, testEvent(enums.EventClientCreated, "agg-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	drain(t, bus)

	if len(healthy.seen()) != 1 {
		t.Fatalf("expected healthy consumer to receive the event, got %d", len(healthy.seen()))
	}
}

func TestBus_PanickingConsumerIsIsolated(t *testing.T) {
	bus := newTestBus(t)
	panicking := &recordingConsumer{name: "panicking", panicOn: enums.EventUserCreated}
	healthy := &recordingConsumer{name: "healthy"}
	if err := bus.Subscribe(AddressUsers, panicking); err != nil {
		t.Fatalf("Subscribe panicking: %v", err)
	}
	if err := bus.Subscribe(AddressUsers, healthy); err != nil {
		t.Fatalf("Subscribe healthy: %v", err)
	}

	if err := bus.Publish(context.Background(), AddressUsers, testEvent(enums.EventUserCreated, "agg-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := bus.Publish(context.Background(), AddressUsers, testEvent(enums.EventUserUpdated, "agg-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	drain(t, bus)

	if len(healthy.seen()) != 2 {
		t.Fatalf("expected healthy consumer to receive both events, got %d", len(healthy.seen()))
	}
	// The panicking consumer still gets later events.
	if len(panicking.seen()) != 1 {
		t.Fatalf("expected panicking consumer to receive the second event, got %d", len(panicking.seen()))
	}
}

func TestBus_SeparateAddressesDoNotInterleaveState(t *testing.T) {
	bus := newTestBus(t)
	clientsConsumer := &recordingConsumer{name: "clients"}
	workConsumer := &recordingConsumer{name: "work"}
	if err := bus.Subscribe(AddressClients, clientsConsumer); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := bus.Subscribe(AddressWork, workConsumer); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.Publish(context.Background(), AddressClients, testEvent(enums.EventClientCreated, "c-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := bus.Publish(context.Background(), AddressWork, testEvent(enums.EventWorkLogged, "w-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	drain(t, bus)

	if len(clientsConsumer.seen()) != 1 || len(workConsumer.seen()) != 1 {
		t.Fatalf("expected one event each, got %d and %d", len(clientsConsumer.seen()), len(workConsumer.seen()))
	}
}

func TestBus_PublishAfterCloseFails(t *testing.T) {
	bus := newTestBus(t)
	drain(t, bus)

	if err := bus.Publish(context.Background(), AddressClients, testEvent(enums.EventClientCreated, "c-1")); err == nil {
		t.Fatal("expected publish on closed bus to fail")
	}
	if err := bus.Subscribe(AddressClients, &recordingConsumer{name: "late"}); err == nil {
		t.Fatal("expected subscribe on closed bus to fail")
	}
}
