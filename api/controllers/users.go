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

type createUserRequest struct {
	FullName string `json:"fullName" validate:"required,min=1,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"omitempty,max=50"`
}

type updateUserRequest struct {
	FullName string `json:"fullName" validate:"omitempty,min=1,max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Role     string `json:"role" validate:"omitempty,max=50"`
	Active   *bool  `json:"active"`
}

func UserCreate(handler *events.Handler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := handler.Handle(r.Context(), events.Command{
			AggregateRootID:   uuid.NewString(),
			EventType:         enums.EventUserCreated,
			AggregateTypeHint: "UserAggregate",
			Payload: payloads.UserCreated{
				FullName: req.FullName,
				Email:    req.Email,
				Role:     req.Role,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAccepted(w, event)
	}
}

func UserUpdate(handler *events.Handler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if _, err := uuid.Parse(userID); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user id must be a uuid"))
			return
		}

		var req updateUserRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := handler.Handle(r.Context(), events.Command{
			AggregateRootID:   userID,
			EventType:         enums.EventUserUpdated,
			AggregateTypeHint: "UserAggregate",
			Payload: payloads.UserUpdated{
				FullName: req.FullName,
				Email:    req.Email,
				Role:     req.Role,
				Active:   req.Active,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAccepted(w, event)
	}
}
