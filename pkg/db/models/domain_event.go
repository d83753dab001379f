package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/caddelle/ops-backend/pkg/enums"
)

// DomainEvent is one append-only ledger row: the durable record of a state
// change. Rows are never updated or deleted; downstream components hold the
// struct by reference and must not mutate it.
type DomainEvent struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	AggregateRootID string          `gorm:"column:aggregate_root_id;not null;index"`
	EventType       enums.EventType `gorm:"column:event_type;not null;index"`
	Actor           string          `gorm:"column:actor;not null"`
	Payload         json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	EffectiveDate   *time.Time      `gorm:"column:effective_date"`
	RecordedAt      time.Time       `gorm:"column:recorded_at;autoCreateTime"`
}

func (DomainEvent) TableName() string { return "domain_events" }
