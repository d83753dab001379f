package controllers

import (
	"fmt"
	"net/http"

	"github.com/caddelle/ops-backend/api/responses"
	"github.com/caddelle/ops-backend/internal/notify"
	pkgerrors "github.com/caddelle/ops-backend/pkg/errors"
	"github.com/caddelle/ops-backend/pkg/logger"
)

// EventsStream pushes changed-aggregate ids to the client as server-sent
// events. The stream carries ids only; clients re-query the read model for
// fresh state. Missed ids while disconnected are gone, which is the
// contract: the read model is the source of truth, the stream is a poke.
func EventsStream(hub *notify.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		changes, cancel := hub.Subscribe()
		defer cancel()

		if logg != nil {
			logg.Debug(r.Context(), "sse subscriber connected")
		}

		for {
			select {
			case <-r.Context().Done():
				if logg != nil {
					logg.Debug(r.Context(), "sse subscriber disconnected")
				}
				return
			case aggregateID, open := <-changes:
				if !open {
					return
				}
				fmt.Fprintf(w, "event: aggregate-changed\ndata: %s\n\n", aggregateID)
				flusher.Flush()
			}
		}
	}
}
