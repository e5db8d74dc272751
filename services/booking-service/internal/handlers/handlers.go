// Package handlers is the HTTP surface of the booking assistant.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/apptchat/libs/events"
	"github.com/md-rashed-zaman/apptchat/libs/httpx"
	"github.com/md-rashed-zaman/apptchat/libs/runtime"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

type Turns interface {
	HandleTurn(ctx context.Context, phone, name, text string) (string, error)
	BusinessID() string
}

type Conversations interface {
	Forget(ctx context.Context, phone string) error
}

type Directory interface {
	GetBusiness(ctx context.Context, id string) (model.Business, error)
	FindCustomerByPhone(ctx context.Context, phone string) (model.Customer, error)
}

type Bookings interface {
	Upcoming(ctx context.Context, biz model.Business, customerID string) ([]model.Appointment, error)
	FindByConfirmationCode(ctx context.Context, code string) (model.Appointment, error)
	Complete(ctx context.Context, id string) (model.Appointment, error)
	SendTomorrowReminders(ctx context.Context, businessID string) (ledger.ReminderReport, error)
	UpdateAppointmentStatuses(ctx context.Context, businessID string) (ledger.StatusReport, error)
}

type Slots interface {
	AvailableSlots(ctx context.Context, businessID string, date model.Date, serviceDuration, bufferTime int) ([]availability.Slot, error)
}

// Sender delivers a reply when a caller asks for it to go out on the
// notification channel as well as in the response.
type Sender interface {
	Send(ctx context.Context, msg events.OutboundMessage) error
}

type Handler struct {
	turns         Turns
	conversations Conversations
	directory     Directory
	bookings      Bookings
	slots         Slots
	sender        Sender
	logger        *slog.Logger
}

type Deps struct {
	Turns         Turns
	Conversations Conversations
	Directory     Directory
	Bookings      Bookings
	Slots         Slots
	Sender        Sender
}

func New(d Deps, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		turns:         d.Turns,
		conversations: d.Conversations,
		directory:     d.Directory,
		bookings:      d.Bookings,
		slots:         d.Slots,
		sender:        d.Sender,
		logger:        logger,
	}
}

// Routes mounts the API under /api/v1 next to the health endpoints. The
// middleware apply to API routes only, so health checks are never rate limited.
func (h *Handler) Routes(ready []runtime.ReadyCheck, mw ...httpx.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", runtime.HealthHandler())
	r.Get("/readyz", runtime.ReadyHandler(ready...))

	r.Route("/api/v1", func(r chi.Router) {
		for _, m := range mw {
			r.Use(m)
		}
		r.Post("/messages", h.PostMessage)
		r.Delete("/conversations/{phone}", h.ForgetConversation)
		r.Get("/availability/{date}", h.Availability)
		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.ListAppointments)
			r.Get("/code/{code}", h.AppointmentByCode)
			r.Post("/{id}/complete", h.CompleteAppointment)
		})
		r.Route("/maintenance", func(r chi.Router) {
			r.Post("/reminders", h.SendReminders)
			r.Post("/update-statuses", h.UpdateStatuses)
		})
	})
	return r
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := apperr.HTTPStatus(err)
	msg := apperr.Reason(err)
	if status >= http.StatusInternalServerError || msg == "" {
		h.logger.ErrorContext(r.Context(), op+" failed",
			"err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		msg = http.StatusText(status)
	}
	httpx.WriteError(w, status, msg)
}

func (h *Handler) business(r *http.Request) (model.Business, error) {
	id := r.URL.Query().Get("business_id")
	if id == "" {
		id = h.turns.BusinessID()
	}
	return h.directory.GetBusiness(r.Context(), id)
}
