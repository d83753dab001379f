package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/caddelle/ops-backend/pkg/db/models"
	"github.com/caddelle/ops-backend/pkg/logger"
	"github.com/caddelle/ops-backend/pkg/metrics"
)

// Consumer is a bus subscriber. Apply must be idempotent: the bus guarantees
// at-least-once delivery, not exactly-once.
type Consumer interface {
	Name() string
	Apply(ctx context.Context, event models.DomainEvent) error
}

type delivery struct {
	ctx   context.Context
	event models.DomainEvent
}

// Bus is the in-process event bus. Each address gets one queue and one
// worker goroutine, so events on the same address reach subscribers in
// publish order. A failing or panicking subscriber is logged and counted;
// it never stops delivery to the others.
type Bus struct {
	mtx       sync.Mutex
	queues    map[Address]chan delivery
	consumers map[Address][]Consumer
	queueSize int
	closed    bool
	wg        sync.WaitGroup
	logg      *logger.Logger
	metrics   *metrics.EventingMetrics
}

type BusParams struct {
	QueueSize int
	Logger    *logger.Logger
	Metrics   *metrics.EventingMetrics
}

func NewBus(params BusParams) (*Bus, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("bus requires a logger")
	}
	if params.QueueSize <= 0 {
		params.QueueSize = 256
	}
	return &Bus{
		queues:    make(map[Address]chan delivery),
		consumers: make(map[Address][]Consumer),
		queueSize: params.QueueSize,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// Subscribe registers a consumer on an address. Subscribing after events
// have already flowed is allowed; the consumer simply misses what came
// before.
func (b *Bus) Subscribe(address Address, consumer Consumer) error {
	if consumer == nil {
		return fmt.Errorf("nil consumer for address %s", address)
	}
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	b.consumers[address] = append(b.consumers[address], consumer)
	b.ensureWorkerLocked(address)
	return nil
}

// Publish enqueues the event on the address queue. It blocks when the queue
// is full, which backpressures the command handler instead of dropping.
// Delivery itself is detached from the caller's context so an HTTP request
// finishing cannot cancel downstream processing.
func (b *Bus) Publish(ctx context.Context, address Address, event models.DomainEvent) error {
	b.mtx.Lock()
	if b.closed {
		b.mtx.Unlock()
		return fmt.Errorf("bus is closed")
	}
	queue := b.ensureWorkerLocked(address)
	b.mtx.Unlock()

	queue <- delivery{ctx: context.WithoutCancel(ctx), event: event}
	return nil
}

// Close stops accepting publishes and drains every queue. It returns once
// all workers finish or the context expires.
func (b *Bus) Close(ctx context.Context) error {
	b.mtx.Lock()
	if b.closed {
		b.mtx.Unlock()
		return nil
	}
	b.closed = true
	for _, queue := range b.queues {
		close(queue)
	}
	b.mtx.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("bus drain interrupted: %w", ctx.Err())
	}
}

func (b *Bus) ensureWorkerLocked(address Address) chan delivery {
	if queue, ok := b.queues[address]; ok {
		return queue
	}
	queue := make(chan delivery, b.queueSize)
	b.queues[address] = queue
	b.wg.Add(1)
	go b.run(address, queue)
	return queue
}

func (b *Bus) run(address Address, queue chan delivery) {
	defer b.wg.Done()
	for d := range queue {
		b.mtx.Lock()
		consumers := append([]Consumer(nil), b.consumers[address]...)
		b.mtx.Unlock()

		ctx := b.logg.WithFields(d.ctx, map[string]any{
			"bus_address": string(address),
			"event_id":    d.event.ID.String(),
			"event_type":  string(d.event.EventType),
		})
		if len(consumers) == 0 {
			b.logg.Warn(ctx, "event delivered to address with no subscribers")
			continue
		}
		for _, consumer := range consumers {
			b.deliver(ctx, address, consumer, d.event)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, address Address, consumer Consumer, event models.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.IncHandlerFailure(string(address), consumer.Name())
			b.logg.Error(
				b.logg.WithField(ctx, "consumer", consumer.Name()),
				"subscriber panicked applying event",
				fmt.Errorf("panic: %v", r),
			)
		}
	}()

	b.metrics.IncDelivery(string(address), consumer.Name())
	if err := consumer.Apply(ctx, event); err != nil {
		b.metrics.IncHandlerFailure(string(address), consumer.Name())
		b.logg.Error(
			b.logg.WithField(ctx, "consumer", consumer.Name()),
			"subscriber failed applying event",
			err,
		)
	}
}
