package controllers

import (
	"net/http"
	"time"

	"github.com/caddelle/ops-backend/api/responses"
	"github.com/caddelle/ops-backend/pkg/db/models"
)

// EventAccepted is returned by every command endpoint. The event is durable
// at this point; read models and external topics catch up asynchronously.
type EventAccepted struct {
	EventID     string    `json:"eventId"`
	AggregateID string    `json:"aggregateId"`
	EventType   string    `json:"eventType"`
	RecordedAt  time.Time `json:"recordedAt"`
}

func writeAccepted(w http.ResponseWriter, event *models.DomainEvent) {
	responses.WriteSuccessStatus(w, http.StatusAccepted, EventAccepted{
		EventID:     event.ID.String(),
		AggregateID: event.AggregateRootID,
		EventType:   string(event.EventType),
		RecordedAt:  event.RecordedAt,
	})
}
