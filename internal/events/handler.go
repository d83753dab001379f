package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/caddelle/ops-backend/internal/ledger"
	"github.com/caddelle/ops-backend/pkg/db"
	"github.com/caddelle/ops-backend/pkg/db/models"
	"github.com/caddelle/ops-backend/pkg/enums"
	apperrors "github.com/caddelle/ops-backend/pkg/errors"
	"github.com/caddelle/ops-backend/pkg/logger"
)

// Command is a request to record one domain event. The payload is the typed
// event body; it is serialized exactly once, at persist time.
type Command struct {
	AggregateRootID string
	EventType       enums.EventType
	// AggregateTypeHint carries the aggregate's type name for routing
	// fallback when the event type is not in the exact table.
	AggregateTypeHint string
	Payload           any
	EffectiveDate     *time.Time
}

// ExternalPublisher sends envelopes to the external broker. Implementations
// absorb their own failures; dispatch never reports them to the caller.
type ExternalPublisher interface {
	Publish(ctx context.Context, eventType enums.EventType, key string, value []byte, headers map[string]string)
}

// Notifier broadcasts changed-aggregate ids to live subscribers.
type Notifier interface {
	Emit(ctx context.Context, aggregateID string)
}

// Handler is the single entry point for state changes. It persists the event
// inside a transaction and, only after commit, fans it out to the internal
// bus, the external publisher, and the change-notification channel. A
// persist failure surfaces synchronously; everything after commit is
// fire-and-forget from the caller's point of view.
type Handler struct {
	db            *db.Client
	ledger        ledger.Repository
	routing       *RoutingTable
	bus           *Bus
	external      ExternalPublisher
	notifier      Notifier
	logg          *logger.Logger
	producer      string
	schemaVersion int
}

type HandlerParams struct {
	DB            *db.Client
	Ledger        ledger.Repository
	Routing       *RoutingTable
	Bus           *Bus
	External      ExternalPublisher
	Notifier      Notifier
	Logger        *logger.Logger
	Producer      string
	SchemaVersion int
}

func NewHandler(params HandlerParams) (*Handler, error) {
	if params.DB == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "handler requires a db client")
	}
	if params.Ledger == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "handler requires a ledger repository")
	}
	if params.Routing == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "handler requires a routing table")
	}
	if params.Bus == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "handler requires a bus")
	}
	if params.Logger == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "handler requires a logger")
	}
	if params.SchemaVersion <= 0 {
		params.SchemaVersion = 1
	}
	return &Handler{
		db:            params.DB,
		ledger:        params.Ledger,
		routing:       params.Routing,
		bus:           params.Bus,
		external:      params.External,
		notifier:      params.Notifier,
		logg:          params.Logger,
		producer:      params.Producer,
		schemaVersion: params.SchemaVersion,
	}, nil
}

// Handle records the command's event and dispatches it. The returned event
// is the persisted row; a non-nil error means nothing was written and
// nothing was dispatched.
func (h *Handler) Handle(ctx context.Context, cmd Command) (*models.DomainEvent, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(cmd.Payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "encoding event payload")
	}

	event := &models.DomainEvent{
		ID:              uuid.New(),
		AggregateRootID: cmd.AggregateRootID,
		EventType:       cmd.EventType,
		Actor:           ActorFromContext(ctx),
		Payload:         payload,
		EffectiveDate:   cmd.EffectiveDate,
		RecordedAt:      time.Now().UTC(),
	}

	err = h.db.WithTx(ctx, func(tx *gorm.DB) error {
		return h.ledger.WithTx(tx).Create(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	h.dispatch(ctx, event, cmd)
	return event, nil
}

func validateCommand(cmd Command) error {
	if cmd.AggregateRootID == "" {
		return apperrors.New(apperrors.CodeValidation, "aggregate root id is required")
	}
	if cmd.EventType == "" {
		return apperrors.New(apperrors.CodeValidation, "event type is required")
	}
	if cmd.Payload == nil {
		return apperrors.New(apperrors.CodeValidation, "event payload is required")
	}
	return nil
}

func (h *Handler) dispatch(ctx context.Context, event *models.DomainEvent, cmd Command) {
	ctx = h.logg.WithFields(ctx, map[string]any{
		"event_id":     event.ID.String(),
		"event_type":   string(event.EventType),
		"aggregate_id": event.AggregateRootID,
	})

	address := h.routing.Resolve(ctx, event.EventType, cmd.AggregateTypeHint)
	if err := h.bus.Publish(ctx, address, *event); err != nil {
		h.logg.Error(ctx, "internal bus rejected event", err)
	}

	h.publishExternal(ctx, event, cmd)

	if h.notifier != nil {
		h.notifier.Emit(ctx, event.AggregateRootID)
	}
}

// publishExternal wraps the event in its envelope and hands it to the
// broker. Range-keyed payloads fan out into one send per covered calendar
// month, keyed by the affected person so downstream partitions by
// consultant rather than by contract.
func (h *Handler) publishExternal(ctx context.Context, event *models.DomainEvent, cmd Command) {
	if h.external == nil {
		return
	}

	envelope := BuildEnvelope(*event, h.producer, h.schemaVersion, CorrelationIDFromContext(ctx))
	value, err := envelope.Encode()
	if err != nil {
		h.logg.Error(ctx, "encoding outbound envelope", err)
		return
	}

	baseHeaders := map[string]string{
		"event_id":   event.ID.String(),
		"event_type": string(event.EventType),
	}

	if ranged, ok := cmd.Payload.(RangeKeyed); ok {
		from, to := ranged.DateRange()
		months := MonthsBetween(from, to)
		key := ranged.RangeKey()
		if len(months) > 0 && key != "" {
			for _, month := range months {
				headers := map[string]string{"month": month}
				for k, v := range baseHeaders {
					headers[k] = v
				}
				h.external.Publish(ctx, event.EventType, key, value, headers)
			}
			return
		}
		h.logg.Warn(ctx, "range-keyed payload has no publishable span, sending single message")
	}

	h.external.Publish(ctx, event.EventType, event.AggregateRootID, value, baseHeaders)
}
