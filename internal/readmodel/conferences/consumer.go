// Package conferences projects conference events into the
// conference_records read model. Cancellation keeps the row and flips a
// flag; history stays queryable.
package conferences

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
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

const consumerName = "conferences-read-model"

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
		return nil, errors.New("conferences consumer requires a db client")
	}
	if params.Registry == nil {
		return nil, errors.New("conferences consumer requires a decoder registry")
	}
	if params.Guard == nil {
		return nil, errors.New("conferences consumer requires an idempotency guard")
	}
	if params.Logger == nil {
		return nil, errors.New("conferences consumer requires a logger")
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
	case enums.EventConferenceScheduled:
		payload := decoded.(*payloads.ConferenceScheduled)
		record := models.ConferenceRecord{
			UUID:     event.AggregateRootID,
			Title:    payload.Title,
			Location: payload.Location,
			StartsOn: payload.StartsOn,
			Tags:     pq.StringArray(payload.Tags),
			Canceled: false,
		}
		return c.db.WithTx(ctx, func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "uuid"}},
				UpdateAll: true,
			}).Create(&record).Error
		})
	case enums.EventConferenceCanceled:
		return c.db.WithTx(ctx, func(tx *gorm.DB) error {
			return tx.Model(&models.ConferenceRecord{}).
				Where("uuid = ?", event.AggregateRootID).
				Update("canceled", true).Error
		})
	default:
		c.logg.Warn(
			c.logg.WithEventType(ctx, string(event.EventType)),
			"conferences consumer received unhandled event type",
		)
		return nil
	}
}

func (c *Consumer) invalidate(ctx context.Context, aggregateID string) {
	if c.cache == nil {
		return
	}
	key := c.cache.CacheKey(string(enums.FamilyConference), aggregateID)
	if err := c.cache.Del(ctx, key); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "cache_key", key), "invalidating conference cache entry failed")
	}
}
