package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caddelle/ops-backend/api/controllers"
	"github.com/caddelle/ops-backend/api/middleware"
	"github.com/caddelle/ops-backend/internal/events"
	"github.com/caddelle/ops-backend/internal/ledger"
	"github.com/caddelle/ops-backend/internal/notify"
	"github.com/caddelle/ops-backend/pkg/config"
	"github.com/caddelle/ops-backend/pkg/db"
	"github.com/caddelle/ops-backend/pkg/logger"
	"github.com/caddelle/ops-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	handler *events.Handler,
	ledgerRepo ledger.Repository,
	hub *notify.Hub,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/clients", func(r chi.Router) {
			r.Post("/", controllers.ClientCreate(handler, logg))
			r.Patch("/{clientID}", controllers.ClientUpdate(handler, logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", controllers.UserCreate(handler, logg))
			r.Patch("/{userID}", controllers.UserUpdate(handler, logg))
		})

		r.Route("/work", func(r chi.Router) {
			r.Post("/", controllers.WorkLog(handler, logg))
			r.Patch("/{workID}", controllers.WorkUpdate(handler, logg))
		})

		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", controllers.ContractCreate(handler, logg))
			r.Post("/{contractID}/consultant", controllers.ContractModifyConsultant(handler, logg))
		})

		r.Route("/conferences", func(r chi.Router) {
			r.Post("/", controllers.ConferenceSchedule(handler, logg))
			r.Post("/{conferenceID}/cancel", controllers.ConferenceCancel(handler, logg))
		})

		r.Get("/aggregates/{aggregateID}/events", controllers.AggregateHistory(ledgerRepo, logg))
		r.Get("/events/stream", controllers.EventsStream(hub, logg))
	})

	return r
}
