// Package clients projects client events into the client_records read model.
package clients

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/caddelle/ops-backend/internal/events"
	"github.com/caddelle/ops-backend/internal/events/idempotency"
	"github.com/caddelle/ops-backend/internal/events/payloads"
	"github.com/caddelle/ops-backend/pkg/db"
	"github.com/caddelle/ops-backend/pkg/db/models"
	"github.com/caddelle/ops-backend/pkg/enums"
	"github.com/caddelle/ops-backend/pkg/logger"
)

const consumerName = "clients-read-model"

// Cache invalidates read-side cache entries after a projection changes.
type Cache interface {
	CacheKey(family, id string) string
	Del(ctx context.Context, keys ...string) error
}

type Consumer struct {
	db       *db.Client
	registry *events.Registry
	guard    *idempotency.Manager
	cache    Cache
	logg     *logger.Logger
}

type Params struct {
	DB       *db.Client
	Registry *events.Registry
	Guard    *idempotency.Manager
	Cache    Cache
	Logger   *logger.Logger
}

func New(params Params) (*Consumer, error) {
	if params.DB == nil {
		return nil, errors.New("clients consumer requires a db client")
	}
	if params.Registry == nil {
		return nil, errors.New("clients consumer requires a decoder registry")
	}
	if params.Guard == nil {
		return nil, errors.New("clients consumer requires an idempotency guard")
	}
	if params.Logger == nil {
		return nil, errors.New("clients consumer requires a logger")
	}
	return &Consumer{
		db:       params.DB,
		registry: params.Registry,
		guard:    params.Guard,
		cache:    params.Cache,
		logg:     params.Logger,
	}, nil
}

func (c *Consumer) Name() string { return consumerName }

// Apply projects one event. Redelivered events are detected by the guard and
// skipped; a failed projection clears the guard so the event can be applied
// again later.
func (c *Consumer) Apply(ctx context.Context, event models.DomainEvent) error {
	seen, err := c.guard.CheckAndMarkProcessed(ctx, consumerName, event.ID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if seen {
		c.logg.Debug(c.logg.WithEventID(ctx, event.ID.String()), "event already projected, skipping")
		return nil
	}

	if err := c.project(ctx, event); err != nil {
		if delErr := c.guard.Delete(ctx, consumerName, event.ID); delErr != nil {
			c.logg.Error(ctx, "clearing idempotency marker after failed projection", delErr)
		}
		return err
	}

	c.invalidate(ctx, event.AggregateRootID)
	return nil
}

func (c *Consumer) project(ctx context.Context, event models.DomainEvent) error {
	decoded, err := c.registry.Decode(event.EventType, event.Payload)
	if err != nil {
		return fmt.Errorf("decoding %s payload: %w", event.EventType, err)
	}

	switch event.EventType {
	case enums.EventClientCreated:
		payload := decoded.(*payloads.ClientCreated)
		record := models.ClientRecord{
			UUID:    event.AggregateRootID,
			Name:    payload.Name,
			Segment: payload.Segment,
		}
		return c.db.WithTx(ctx, func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "uuid"}},
				UpdateAll: true,
			}).Create(&record).Error
		})
	case enums.EventClientUpdated:
		payload := decoded.(*payloads.ClientUpdated)
		changes := map[string]any{}
		if payload.Name != "" {
			changes["name"] = payload.Name
		}
		if payload.Segment != "" {
			changes["segment"] = payload.Segment
		}
		if len(changes) == 0 {
			return nil
		}
		return c.db.WithTx(ctx, func(tx *gorm.DB) error {
			return tx.Model(&models.ClientRecord{}).
				Where("uuid = ?", event.AggregateRootID).
				Updates(changes).Error
		})
	default:
		c.logg.Warn(
			c.logg.WithEventType(ctx, string(event.EventType)),
			"clients consumer received unhandled event type",
		)
		return nil
	}
}

func (c *Consumer) invalidate(ctx context.Context, aggregateID string) {
	if c.cache == nil {
		return
	}
	key := c.cache.CacheKey(string(enums.FamilyClient), aggregateID)
	if err := c.cache.Del(ctx, key); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "cache_key", key), "invalidating client cache entry failed")
	}
}
