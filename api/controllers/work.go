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

type logWorkRequest struct {
	UserID   string     `json:"userId" validate:"required,uuid"`
	ClientID string     `json:"clientId" validate:"required,uuid"`
	Hours    float64    `json:"hours" validate:"required,gt=0,lte=24"`
	WorkedOn *time.Time `json:"workedOn"`
	Note     string     `json:"note" validate:"omitempty,max=2000"`
}

type updateWorkRequest struct {
	Hours float64 `json:"hours" validate:"omitempty,gt=0,lte=24"`
	Note  string  `json:"note" validate:"omitempty,max=2000"`
}

func WorkLog(handler *events.Handler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req logWorkRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := handler.Handle(r.Context(), events.Command{
			AggregateRootID:   uuid.NewString(),
			EventType:         enums.EventWorkLogged,
			AggregateTypeHint: "WorkAggregate",
			Payload: payloads.WorkLogged{
				UserID:   req.UserID,
				ClientID: req.ClientID,
				Hours:    req.Hours,
				WorkedOn: req.WorkedOn,
				Note:     req.Note,
			},
			EffectiveDate: req.WorkedOn,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAccepted(w, event)
	}
}

func WorkUpdate(handler *events.Handler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workID := chi.URLParam(r, "workID")
		if _, err := uuid.Parse(workID); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "work id must be a uuid"))
			return
		}

		var req updateWorkRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := handler.Handle(r.Context(), events.Command{
			AggregateRootID:   workID,
			EventType:         enums.EventWorkUpdated,
			AggregateTypeHint: "WorkAggregate",
			Payload: payloads.WorkUpdated{
				Hours: req.Hours,
				Note:  req.Note,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAccepted(w, event)
	}
}
