// Package publisher sends domain event envelopes to Kafka. The producer is
// tuned for ordered, deduplicated delivery: hashed partitioning by message
// key, acks from all replicas, bounded retries, and a short linger window.
// Failures are absorbed and counted; command handling never waits on the
// broker.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/caddelle/ops-backend/internal/events"
	"github.com/caddelle/ops-backend/pkg/config"
	"github.com/caddelle/ops-backend/pkg/enums"
	"github.com/caddelle/ops-backend/pkg/logger"
	"github.com/caddelle/ops-backend/pkg/metrics"
)

// messageWriter is the seam between the publisher and kafka-go. Tests swap
// in a capture writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher resolves topics and writes envelopes. In shadow mode messages
// flow to the broker but failures are logged at debug and carry no alerting
// weight; in live mode they are errors.
type Publisher struct {
	writer  messageWriter
	topics  *events.TopicTable
	mode    string
	metrics *metrics.EventingMetrics
	logg    *logger.Logger
}

type Params struct {
	Kafka   config.KafkaConfig
	Topics  *events.TopicTable
	Metrics *metrics.EventingMetrics
	Logger  *logger.Logger
}

// New builds a live or shadow publisher. Callers check cfg.Kafka.Enabled()
// first; constructing a publisher in off mode is an error.
func New(params Params) (*Publisher, error) {
	if !params.Kafka.Enabled() {
		return nil, errors.New("publisher requires kafka mode shadow or live")
	}
	if params.Topics == nil {
		return nil, errors.New("publisher requires a topic table")
	}
	if params.Logger == nil {
		return nil, errors.New("publisher requires a logger")
	}

	p := &Publisher{
		topics:  params.Topics,
		mode:    params.Kafka.NormalizedMode(),
		metrics: params.Metrics,
		logg:    params.Logger,
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(params.Kafka.BrokerList()...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  params.Kafka.MaxAttempts,
		BatchTimeout: time.Duration(params.Kafka.BatchTimeoutMS) * time.Millisecond,
		Async:        true,
		Completion:   p.onCompletion,
	}
	return p, nil
}

// NewWithWriter wires an explicit writer. Used by tests.
func NewWithWriter(writer messageWriter, topics *events.TopicTable, mode string, m *metrics.EventingMetrics, logg *logger.Logger) *Publisher {
	return &Publisher{writer: writer, topics: topics, mode: mode, metrics: m, logg: logg}
}

// Publish hands one message to the async writer. A missing topic mapping
// means the event type was never meant to leave the process; it is logged
// once per call and skipped.
func (p *Publisher) Publish(ctx context.Context, eventType enums.EventType, key string, value []byte, headers map[string]string) {
	topic, ok := p.topics.Resolve(eventType)
	if !ok {
		p.logg.Debug(
			p.logg.WithEventType(ctx, string(eventType)),
			"event type has no external topic, keeping internal",
		)
		return
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}
	for name, val := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: name, Value: []byte(val)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		// Async writers only fail here when the producer itself is unusable
		// (closed, bad config); delivery errors arrive via onCompletion.
		p.recordFailure(ctx, topic, err)
	}
}

func (p *Publisher) onCompletion(messages []kafka.Message, err error) {
	ctx := context.Background()
	for _, msg := range messages {
		if err != nil {
			p.recordFailure(ctx, msg.Topic, err)
			continue
		}
		p.metrics.IncPublishSuccess(msg.Topic, p.mode)
	}
}

func (p *Publisher) recordFailure(ctx context.Context, topic string, err error) {
	p.metrics.IncPublishFailure(topic, p.mode)
	ctx = p.logg.WithFields(ctx, map[string]any{
		"topic": topic,
		"mode":  p.mode,
	})
	if p.mode == config.KafkaModeLive {
		p.logg.Error(ctx, "external publish failed after producer retries", err)
		return
	}
	p.logg.Debug(p.logg.WithField(ctx, "error", err.Error()), "shadow publish failed")
}

// Close flushes buffered messages and releases the writer. Called during
// graceful shutdown with a bounded context upstream.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	return nil
}
