package controllers

import (
	"net/http"

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

type createClientRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=200"`
	Segment string `json:"segment" validate:"omitempty,max=100"`
	Country string `json:"country" validate:"omitempty,max=100"`
}

type updateClientRequest struct {
	Name    string `json:"name" validate:"omitempty,min=1,max=200"`
	Segment string `json:"segment" validate:"omitempty,max=100"`
	Country string `json:"country" validate:"omitempty,max=100"`
}

func ClientCreate(handler *events.Handler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createClientRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := handler.Handle(r.Context(), events.Command{
			AggregateRootID:   uuid.NewString(),
			EventType:         enums.EventClientCreated,
			AggregateTypeHint: "ClientAggregate",
			Payload: payloads.ClientCreated{
				Name:    req.Name,
				Segment: req.Segment,
				Country: req.Country,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAccepted(w, event)
	}
}

func ClientUpdate(handler *events.Handler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := chi.URLParam(r, "clientID")
		if _, err := uuid.Parse(clientID); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "client id must be a uuid"))
			return
		}

		var req updateClientRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := handler.Handle(r.Context(), events.Command{
			AggregateRootID:   clientID,
			EventType:         enums.EventClientUpdated,
			AggregateTypeHint: "ClientAggregate",
			Payload: payloads.ClientUpdated{
				Name:    req.Name,
				Segment: req.Segment,
				Country: req.Country,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAccepted(w, event)
	}
}
