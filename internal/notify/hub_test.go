package notify

import (
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/caddelle/ops-backend/pkg/config"
	"github.com/caddelle/ops-backend/pkg/logger"
	"github.com/caddelle/ops-backend/pkg/redis"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
}

func newTestHub(t *testing.T, buffer int) *Hub {
	t.Helper()
	hub, err := NewHub(&redis.Client{}, config.NotifyConfig{
		Channel:          "caddelle.changed-aggregates",
		SubscriberBuffer: buffer,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	return hub
}

func TestFanout_DeliversToAllSubscribers(t *testing.T) {
	hub := newTestHub(t, 4)

	first, cancelFirst := hub.Subscribe()
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe()
	defer cancelSecond()

	hub.fanout("agg-1")

	if got := <-first; got != "agg-1" {
		t.Fatalf("first subscriber got %q", got)
	}
	if got := <-second; got != "agg-1" {
		t.Fatalf("second subscriber got %q", got)
	}
}

func TestFanout_SlowSubscriberDropsWithoutBlocking(t *testing.T) {
	hub := newTestHub(t, 1)

	slow, cancelSlow := hub.Subscribe()
	defer cancelSlow()
	fast, cancelFast := hub.Subscribe()
	defer cancelFast()

	hub.fanout("agg-1")
	if got := <-fast; got != "agg-1" {
		t.Fatalf("fast subscriber got %q", got)
	}

	// The slow subscriber's buffer is still full with agg-1, so this drops
	// for it; the call must return immediately and the fast subscriber must
	// still see the id.
	hub.fanout("agg-2")
	if got := <-fast; got != "agg-2" {
		t.Fatalf("fast subscriber got %q", got)
	}

	if got := <-slow; got != "agg-1" {
		t.Fatalf("slow subscriber got %q", got)
	}
	select {
	case got := <-slow:
		t.Fatalf("expected agg-2 to be dropped for slow subscriber, got %q", got)
	default:
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	hub := newTestHub(t, 4)

	ch, cancel := hub.Subscribe()
	if hub.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.SubscriberCount())
	}

	cancel()
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.SubscriberCount())
	}
	if _, open := <-ch; open {
		t.Fatal("expected channel to be closed")
	}

	// Second cancel is a no-op.
	cancel()

	// Fanout after cancel must not panic.
	hub.fanout("agg-1")
}

func TestNewHub_Validation(t *testing.T) {
	if _, err := NewHub(nil, config.NotifyConfig{Channel: "c"}, testLogger()); err == nil {
		t.Fatal("expected error for nil redis client")
	}
	if _, err := NewHub(&redis.Client{}, config.NotifyConfig{}, testLogger()); err == nil {
		t.Fatal("expected error for empty channel")
	}
	if _, err := NewHub(&redis.Client{}, config.NotifyConfig{Channel: "c"}, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}
