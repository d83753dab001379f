// Package users projects user events into the user_records read model.
package users

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

const consumerName = "users-read-model"

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
		return nil, errors.New("users consumer requires a db client")
	}
	if params.Registry == nil {
		return nil, errors.New("users consumer requires a decoder registry")
	}
	if params.Guard == nil {
		return nil, errors.New("users consumer requires an idempotency guard")
	}
	if params.Logger == nil {
		return nil, errors.New("users consumer requires a logger")
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
	case enums.EventUserCreated:
		payload := decoded.(*payloads.UserCreated)
		record := models.UserRecord{
			UUID:     event.AggregateRootID,
			FullName: payload.FullName,
			Email:    payload.Email,
			Active:   true,
		}
		return c.db.WithTx(ctx, func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "uuid"}},
				UpdateAll: true,
			}).Create(&record).Error
		})
	case enums.EventUserUpdated:
		payload := decoded.(*payloads.UserUpdated)
		changes := map[string]any{}
		if payload.FullName != "" {
			changes["full_name"] = payload.FullName
		}
		if payload.Email != "" {
			changes["email"] = payload.Email
		}
		if payload.Active != nil {
			changes["active"] = *payload.Active
		}
		if len(changes) == 0 {
			return nil
		}
		return c.db.WithTx(ctx, func(tx *gorm.DB) error {
			return tx.Model(&models.UserRecord{}).
				Where("uuid = ?", event.AggregateRootID).
				Updates(changes).Error
		})
	default:
		c.logg.Warn(
			c.logg.WithEventType(ctx, string(event.EventType)),
			"users consumer received unhandled event type",
		)
		return nil
	}
}

func (c *Consumer) invalidate(ctx context.Context, aggregateID string) {
	if c.cache == nil {
		return
	}
	key := c.cache.CacheKey(string(enums.FamilyUser), aggregateID)
	if err := c.cache.Del(ctx, key); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "cache_key", key), "invalidating user cache entry failed")
	}
}
