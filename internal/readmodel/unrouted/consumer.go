// Package unrouted listens on the default bus address. Events land here
// when routing fell back; the consumer only makes them visible so a missing
// route is an operational signal instead of silent loss.
package unrouted

import (
	"context"
	"errors"

	"github.com/caddelle/ops-backend/pkg/db/models"
	"github.com/caddelle/ops-backend/pkg/logger"
)

const consumerName = "unrouted-listener"

type Consumer struct {
	logg *logger.Logger
}

func New(logg *logger.Logger) (*Consumer, error) {
	if logg == nil {
		return nil, errors.New("unrouted listener requires a logger")
	}
	return &Consumer{logg: logg}, nil
}

func (c *Consumer) Name() string { return consumerName }

func (c *Consumer) Apply(ctx context.Context, event models.DomainEvent) error {
	c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
		"event_id":     event.ID.String(),
		"event_type":   string(event.EventType),
		"aggregate_id": event.AggregateRootID,
	}), "event arrived on default address without a route")
	return nil
}
