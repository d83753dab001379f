package ledger

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/caddelle/ops-backend/pkg/db"
	"github.com/caddelle/ops-backend/pkg/db/models"
	apperrors "github.com/caddelle/ops-backend/pkg/errors"
)

// Repository is the append-only event ledger. There are no update or delete
// operations: corrections are new events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.DomainEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DomainEvent, error)
	ListByAggregate(ctx context.Context, aggregateRootID string) ([]models.DomainEvent, error)
}

type gormRepository struct {
	conn *gorm.DB
}

func NewRepository(client *db.Client) Repository {
	return &gormRepository{conn: client.DB()}
}

// WithTx returns a repository bound to the given transaction handle.
func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{conn: tx}
}

func (r *gormRepository) Create(ctx context.Context, event *models.DomainEvent) error {
	if event == nil {
		return apperrors.New(apperrors.CodeValidation, "event is required")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if err := r.conn.WithContext(ctx).Create(event).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return apperrors.Wrap(apperrors.CodeConflict, err, "event already recorded")
		}
		return apperrors.Wrap(apperrors.CodeDependency, err, "inserting domain event")
	}
	return nil
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DomainEvent, error) {
	var event models.DomainEvent
	err := r.conn.WithContext(ctx).First(&event, "id = ?", id).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("event %s not found", id))
		}
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "loading domain event")
	}
	return &event, nil
}

// ListByAggregate returns the full history for one aggregate root, oldest
// first. Recorded-at ties break on id for a stable order.
func (r *gormRepository) ListByAggregate(ctx context.Context, aggregateRootID string) ([]models.DomainEvent, error) {
	var events []models.DomainEvent
	err := r.conn.WithContext(ctx).
		Where("aggregate_root_id = ?", aggregateRootID).
		Order("recorded_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "listing aggregate events")
	}
	return events, nil
}
