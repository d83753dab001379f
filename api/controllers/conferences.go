package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caddelle/ops-backend/api/responses"
	"github.com/caddelle/ops-backend/api/validators"
	"github.com/caddelle/ops-backend/internal/events"
	"github.com/caddelle/ops-backend/internal/events/payloads"
	"github.com/caddelle/ops-backend/pkg/enums"
	pkgerrors "github.com/caddelle/ops-backend/pkg/errors"
	"github.com/caddelle/ops-backend/pkg/logger"
)

type scheduleConferenceRequest struct {
	Title    string     `json:"title" validate:"required,min=1,max=300"`
	Location string     `json:"location" validate:"omitempty,max=300"`
	StartsOn *time.Time `json:"startsOn"`
	Tags     []string   `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
}

type cancelConferenceRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

func ConferenceSchedule(handler *events.Handler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduleConferenceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := handler.Handle(r.Context(), events.Command{
			AggregateRootID:   uuid.NewString(),
			EventType:         enums.EventConferenceScheduled,
			AggregateTypeHint: "ConferenceAggregate",
			Payload: payloads.ConferenceScheduled{
				Title:    req.Title,
				Location: req.Location,
				StartsOn: req.StartsOn,
				Tags:     req.Tags,
			},
			EffectiveDate: req.StartsOn,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAccepted(w, event)
	}
}

func ConferenceCancel(handler *events.Handler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conferenceID := chi.URLParam(r, "conferenceID")
		if _, err := uuid.Parse(conferenceID); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "conference id must be a uuid"))
			return
		}

		var req cancelConferenceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := handler.Handle(r.Context(), events.Command{
			AggregateRootID:   conferenceID,
			EventType:         enums.EventConferenceCanceled,
			AggregateTypeHint: "ConferenceAggregate",
			Payload: payloads.ConferenceCanceled{
				Reason: req.Reason,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAccepted(w, event)
	}
}
