package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caddelle/ops-backend/api/responses"
	"github.com/caddelle/ops-backend/internal/ledger"
	pkgerrors "github.com/caddelle/ops-backend/pkg/errors"
	"github.com/caddelle/ops-backend/pkg/logger"
)

type eventView struct {
	EventID       string          `json:"eventId"`
	AggregateID   string          `json:"aggregateId"`
	EventType     string          `json:"eventType"`
	Actor         string          `json:"actor"`
	Payload       json.RawMessage `json:"payload"`
	EffectiveDate *time.Time      `json:"effectiveDate,omitempty"`
	RecordedAt    time.Time       `json:"recordedAt"`
}

// AggregateHistory returns the full event stream for one aggregate root,
// oldest first.
func AggregateHistory(repo ledger.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aggregateID := chi.URLParam(r, "aggregateID")
		if _, err := uuid.Parse(aggregateID); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "aggregate id must be a uuid"))
			return
		}

		eventRows, err := repo.ListByAggregate(r.Context(), aggregateID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]eventView, 0, len(eventRows))
		for _, row := range eventRows {
			views = append(views, eventView{
				EventID:       row.ID.String(),
				AggregateID:   row.AggregateRootID,
				EventType:     string(row.EventType),
				Actor:         row.Actor,
				Payload:       row.Payload,
				EffectiveDate: row.EffectiveDate,
				RecordedAt:    row.RecordedAt,
			})
		}
		responses.WriteSuccess(w, views)
	}
}
