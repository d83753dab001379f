package events

import (
	"encoding/json"
	"time"

	"github.com/caddelle/ops-backend/pkg/db/models"
	"github.com/caddelle/ops-backend/pkg/enums"
)

// Envelope is the outbound wire shape. The domain payload travels as an
// embedded JSON string so downstream consumers can route on the metadata
// without touching the body.
type Envelope struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	AggregateType string            `json:"aggregateType"`
	AggregateID   string            `json:"aggregateId"`
	OccurredAt    time.Time         `json:"occurredAt"`
	Producer      string            `json:"producer"`
	SchemaVersion int               `json:"schemaVersion"`
	CorrelationID string            `json:"correlationId,omitempty"`
	CausationID   string            `json:"causationId,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Payload       string            `json:"payload"`
}

// BuildEnvelope wraps a persisted ledger event for external publication.
// Correlation and causation both trace back to the originating request.
func BuildEnvelope(event models.DomainEvent, producer string, schemaVersion int, correlationID string) Envelope {
	return Envelope{
		ID:            event.ID.String(),
		Type:          string(event.EventType),
		AggregateType: string(FamilyFor(event.EventType)),
		AggregateID:   event.AggregateRootID,
		OccurredAt:    event.RecordedAt.UTC(),
		Producer:      producer,
		SchemaVersion: schemaVersion,
		CorrelationID: correlationID,
		CausationID:   correlationID,
		Payload:       string(event.Payload),
	}
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEnvelope(raw []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(raw, &e)
	return e, err
}

// FamilyFor maps an event type to the aggregate family it mutates. Unknown
// types fall back to the empty family; routing handles those separately.
func FamilyFor(eventType enums.EventType) enums.AggregateFamily {
	switch eventType {
	case enums.EventClientCreated, enums.EventClientUpdated:
		return enums.FamilyClient
	case enums.EventUserCreated, enums.EventUserUpdated:
		return enums.FamilyUser
	case enums.EventWorkLogged, enums.EventWorkUpdated:
		return enums.FamilyWork
	case enums.EventContractCreated, enums.EventContractConsultantModified:
		return enums.FamilyContract
	case enums.EventConferenceScheduled, enums.EventConferenceCanceled:
		return enums.FamilyConference
	default:
		return ""
	}
}
