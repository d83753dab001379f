// Package notify fans changed-aggregate ids out to live subscribers. The
// channel is deliberately thin: ids only, no payloads, no persistence. A
// subscriber that missed a notification re-reads the read model; a
// subscriber that cannot keep up loses notifications rather than slowing
// everyone else down.
package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/caddelle/ops-backend/pkg/config"
	"github.com/caddelle/ops-backend/pkg/logger"
	"github.com/caddelle/ops-backend/pkg/redis"
)

// Hub bridges the redis pub/sub channel to in-process subscribers. Going
// through redis means every api replica sees notifications regardless of
// which replica handled the command.
type Hub struct {
	rdb     *redis.Client
	channel string
	buffer  int
	logg    *logger.Logger

	mtx  sync.Mutex
	subs map[chan string]struct{}
}

func NewHub(rdb *redis.Client, cfg config.NotifyConfig, logg *logger.Logger) (*Hub, error) {
	if rdb == nil {
		return nil, errors.New("notify hub requires a redis client")
	}
	if logg == nil {
		return nil, errors.New("notify hub requires a logger")
	}
	if cfg.Channel == "" {
		return nil, errors.New("notify channel name is required")
	}
	buffer := cfg.SubscriberBuffer
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{
		rdb:     rdb,
		channel: cfg.Channel,
		buffer:  buffer,
		logg:    logg,
		subs:    make(map[chan string]struct{}),
	}, nil
}

// Emit publishes a changed-aggregate id. Errors are logged and swallowed:
// notification is best effort and never blocks the event pipeline.
func (h *Hub) Emit(ctx context.Context, aggregateID string) {
	if aggregateID == "" {
		return
	}
	if err := h.rdb.Publish(ctx, h.channel, aggregateID); err != nil {
		h.logg.Error(
			h.logg.WithAggregateID(ctx, aggregateID),
			"publishing change notification",
			err,
		)
	}
}

// Run consumes the redis channel and fans messages out until the context is
// canceled. Intended to run in its own goroutine per process.
func (h *Hub) Run(ctx context.Context) error {
	sub, err := h.rdb.Subscribe(ctx, h.channel)
	if err != nil {
		return err
	}
	defer func() {
		_ = sub.Close()
	}()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("notification subscription closed")
			}
			h.fanout(msg.Payload)
		}
	}
}

// Subscribe registers a listener. The returned cancel func must be called;
// it unregisters the channel and closes it.
func (h *Hub) Subscribe() (<-chan string, func()) {
	ch := make(chan string, h.buffer)
	h.mtx.Lock()
	h.subs[ch] = struct{}{}
	h.mtx.Unlock()

	cancel := func() {
		h.mtx.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mtx.Unlock()
	}
	return ch, cancel
}

// fanout delivers to every subscriber without blocking. A full subscriber
// buffer drops the id for that subscriber only.
func (h *Hub) fanout(aggregateID string) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	for ch := range h.subs {
		select {
		case ch <- aggregateID:
		default:
			h.logg.Warn(
				h.logg.WithAggregateID(context.Background(), aggregateID),
				"dropping change notification for slow subscriber",
			)
		}
	}
}

// SubscriberCount reports the number of live listeners.
func (h *Hub) SubscriberCount() int {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return len(h.subs)
}
