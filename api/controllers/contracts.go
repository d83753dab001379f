package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/caddelle/ops-backend/api/responses"
	"github.com/caddelle/ops-backend/api/validators"
	"github.com/caddelle/ops-backend/internal/events"
	"github.com/caddelle/ops-backend/internal/events/payloads"
	"github.com/caddelle/ops-backend/pkg/enums"
	pkgerrors "github.com/caddelle/ops-backend/pkg/errors"
	"github.com/caddelle/ops-backend/pkg/logger"
)

type createContractRequest struct {
	ClientID    string          `json:"clientId" validate:"required,uuid"`
	UserID      string          `json:"userId" validate:"required,uuid"`
	MonthlyRate decimal.Decimal `json:"monthlyRate" validate:"required"`
	ActiveFrom  *time.Time      `json:"activeFrom"`
	ActiveTo    *time.Time      `json:"activeTo"`
}

type modifyConsultantRequest struct {
	UserID      string          `json:"userId" validate:"required,uuid"`
	MonthlyRate decimal.Decimal `json:"monthlyRate" validate:"required"`
	ActiveFrom  time.Time       `json:"activeFrom" validate:"required"`
	ActiveTo    time.Time       `json:"activeTo" validate:"required,gtfield=ActiveFrom"`
}

func ContractCreate(handler *events.Handler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createContractRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := handler.Handle(r.Context(), events.Command{
			AggregateRootID:   uuid.NewString(),
			EventType:         enums.EventContractCreated,
			AggregateTypeHint: "ContractAggregate",
			Payload: payloads.ContractCreated{
				ClientID:    req.ClientID,
				UserID:      req.UserID,
				MonthlyRate: req.MonthlyRate,
				ActiveFrom:  req.ActiveFrom,
				ActiveTo:    req.ActiveTo,
			},
			EffectiveDate: req.ActiveFrom,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAccepted(w, event)
	}
}

// ContractModifyConsultant reassigns the consultant or rate on a contract.
// Externally this event fans out one message per calendar month of the
// active span, keyed by the consultant id.
func ContractModifyConsultant(handler *events.Handler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID := chi.URLParam(r, "contractID")
		if _, err := uuid.Parse(contractID); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "contract id must be a uuid"))
			return
		}

		var req modifyConsultantRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := handler.Handle(r.Context(), events.Command{
			AggregateRootID:   contractID,
			EventType:         enums.EventContractConsultantModified,
			AggregateTypeHint: "ContractAggregate",
			Payload: payloads.ContractConsultantModified{
				UserID:      req.UserID,
				MonthlyRate: req.MonthlyRate,
				ActiveFrom:  req.ActiveFrom,
				ActiveTo:    req.ActiveTo,
			},
			EffectiveDate: &req.ActiveFrom,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAccepted(w, event)
	}
}
