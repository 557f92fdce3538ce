package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/care-scheduling/internal/appointment"
	"github.com/hackgods/care-scheduling/internal/slot"
)

type RouterConfig struct {
	Slots        *slot.Service
	Appointments *appointment.Service
	Health       *HealthHandler
	// Dashboards serves the websocket stream; nil disables /ws.
	Dashboards http.Handler
	Gatherer   prometheus.Gatherer
	Location   *time.Location
	Logger     logrus.FieldLogger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Health == nil {
		cfg.Health = NewHealthHandler("", "")
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/doctors/{doctorID}", func(r chi.Router) {
		r.Post("/slots", publishSlotsHandler(cfg.Slots, cfg.Location))
		r.Get("/slots", listSlotsHandler(cfg.Slots, cfg.Location))
		r.Get("/availability", availabilityHandler(cfg.Slots, cfg.Location))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Appointments))
		r.Get("/", listAppointmentsHandler(cfg.Appointments))
		r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/transition", transitionAppointmentHandler(cfg.Appointments))
	})

	if cfg.Dashboards != nil {
		r.Method(http.MethodGet, "/ws", cfg.Dashboards)
	}

	return r
}
