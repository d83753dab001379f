package publisher

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/caddelle/ops-backend/internal/events"
	"github.com/caddelle/ops-backend/pkg/config"
	"github.com/caddelle/ops-backend/pkg/enums"
	"github.com/caddelle/ops-backend/pkg/logger"
)

type captureWriter struct {
	messages []kafka.Message
	writeErr error
	closed   bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
}

func testTopics(t *testing.T) *events.TopicTable {
	t.Helper()
	table, err := events.NewTopicTable(map[string]string{
		"CLIENT_CREATED":               "ops.clients",
		"CONTRACT_CONSULTANT_MODIFIED": "ops.contracts",
	})
	if err != nil {
		t.Fatalf("NewTopicTable: %v", err)
	}
	return table
}

func TestPublish_WritesMessageWithTopicKeyAndHeaders(t *testing.T) {
	writer := &captureWriter{}
	pub := NewWithWriter(writer, testTopics(t), config.KafkaModeLive, nil, testLogger())

	pub.Publish(context.Background(), enums.EventClientCreated, "agg-1", []byte(`{"id":"e1"}`), map[string]string{
		"event_id": "e1",
		"month":    "2026-02",
	})

	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.messages))
	}
	msg := writer.messages[0]
	if msg.Topic != "ops.clients" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}
	if string(msg.Key) != "agg-1" {
		t.Fatalf("unexpected key: %s", msg.Key)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["event_id"] != "e1" || headers["month"] != "2026-02" {
		t.Fatalf("unexpected headers: %v", headers)
	}
}

func TestPublish_UnmappedEventTypeIsSkipped(t *testing.T) {
	writer := &captureWriter{}
	pub := NewWithWriter(writer, testTopics(t), config.KafkaModeLive, nil, testLogger())

	pub.Publish(context.Background(), enums.EventConferenceCanceled, "agg-1", []byte(`{}`), nil)

	if len(writer.messages) != 0 {
		t.Fatalf("expected no messages for unmapped type, got %d", len(writer.messages))
	}
}

func TestPublish_WriterErrorIsAbsorbed(t *testing.T) {
	writer := &captureWriter{writeErr: errors.New("broker gone")}
	pub := NewWithWriter(writer, testTopics(t), config.KafkaModeShadow, nil, testLogger())

	// Must not panic or surface anything to the caller.
	pub.Publish(context.Background(), enums.EventClientCreated, "agg-1", []byte(`{}`), nil)
}

// ackLostWriter records every write but reports the first one as failed,
// the shape of a broker that committed a batch whose ack timed out. The
// producer's internal retry then lands a second copy of the same record.
type ackLostWriter struct {
	captureWriter
	failed bool
}

func (w *ackLostWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	if !w.failed {
		w.failed = true
		return errors.New("request timed out")
	}
	return nil
}

func TestPublish_RetriedSendStaysDeduplicable(t *testing.T) {
	writer := &ackLostWriter{}
	pub := NewWithWriter(writer, testTopics(t), config.KafkaModeLive, nil, testLogger())

	value := []byte(`{"id":"e1","type":"CLIENT_CREATED"}`)
	headers := map[string]string{"event_id": "e1"}

	// The producer has no idempotence support, so a lost ack yields two
	// visible records. Both copies must be byte identical and carry the
	// envelope id so consumers can collapse them.
	pub.Publish(context.Background(), enums.EventClientCreated, "agg-1", value, headers)
	pub.Publish(context.Background(), enums.EventClientCreated, "agg-1", value, headers)

	if len(writer.messages) != 2 {
		t.Fatalf("expected 2 recorded sends, got %d", len(writer.messages))
	}
	first, second := writer.messages[0], writer.messages[1]
	if first.Topic != second.Topic || string(first.Key) != string(second.Key) {
		t.Fatalf("duplicate send diverged: %s/%s vs %s/%s", first.Topic, first.Key, second.Topic, second.Key)
	}
	if string(first.Value) != string(second.Value) {
		t.Fatal("duplicate send produced different payload bytes")
	}
	eventID := func(msg kafka.Message) string {
		for _, h := range msg.Headers {
			if h.Key == "event_id" {
				return string(h.Value)
			}
		}
		return ""
	}
	if eventID(first) != "e1" || eventID(second) != "e1" {
		t.Fatalf("event_id header must survive the retry: %q vs %q", eventID(first), eventID(second))
	}
}

func TestClose_ClosesWriter(t *testing.T) {
	writer := &captureWriter{}
	pub := NewWithWriter(writer, testTopics(t), config.KafkaModeLive, nil, testLogger())

	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !writer.closed {
		t.Fatal("expected writer to be closed")
	}
}

func TestNew_RequiresEnabledMode(t *testing.T) {
	_, err := New(Params{
		Kafka:  config.KafkaConfig{Mode: config.KafkaModeOff},
		Topics: testTopics(t),
		Logger: testLogger(),
	})
	if err == nil {
		t.Fatal("expected error for off mode")
	}
}

func TestNew_BuildsTunedWriter(t *testing.T) {
	pub, err := New(Params{
		Kafka: config.KafkaConfig{
			Mode:           config.KafkaModeLive,
			Brokers:        "broker-1:9092,broker-2:9092",
			Topics:         map[string]string{"CLIENT_CREATED": "ops.clients"},
			MaxAttempts:    5,
			BatchTimeoutMS: 5,
		},
		Topics: testTopics(t),
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	writer, ok := pub.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("unexpected writer type %T", pub.writer)
	}
	if writer.RequiredAcks != kafka.RequireAll {
		t.Fatalf("expected acks from all replicas, got %v", writer.RequiredAcks)
	}
	if writer.MaxAttempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", writer.MaxAttempts)
	}
	if !writer.Async {
		t.Fatal("expected async writer")
	}
	if _, ok := writer.Balancer.(*kafka.Hash); !ok {
		t.Fatalf("expected hash balancer, got %T", writer.Balancer)
	}
}
