package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/afyalink/telemed-platform/internal/http/handlers"
	httpmiddleware "github.com/afyalink/telemed-platform/internal/http/middleware"
	"github.com/afyalink/telemed-platform/internal/payments"
	"github.com/afyalink/telemed-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	Appointments    *handlers.AppointmentsHandler
	Availability    *handlers.AvailabilityHandler
	Payments        *handlers.PaymentsHandler
	Consultations   *handlers.ConsultationsHandler
	PaystackWebhook *payments.WebhookHandler
	MetricsHandler  http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if cfg.PaystackWebhook != nil {
		r.Post("/webhooks/paystack", cfg.PaystackWebhook.Handle)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.Availability != nil {
			api.Get("/doctors/{doctorID}/slots", cfg.Availability.Slots)
		}
		if cfg.Appointments != nil {
			api.Post("/appointments", cfg.Appointments.Book)
			api.Route("/appointments/{appointmentID}", func(appt chi.Router) {
				appt.Get("/", cfg.Appointments.Get)
				appt.Post("/cancel", cfg.Appointments.Cancel)
				appt.Post("/no-show", cfg.Appointments.MarkNoShow)
				if cfg.Consultations != nil {
					appt.Post("/session", cfg.Consultations.StartSession)
					appt.Get("/session", cfg.Consultations.GetSession)
					appt.Post("/session/end", cfg.Consultations.EndSession)
				}
			})
		}
		if cfg.Payments != nil {
			api.Post("/payments/initialize", cfg.Payments.Initialize)
			api.Get("/payments/verify/{reference}", cfg.Payments.Verify)
		}
	})

	return r
}
