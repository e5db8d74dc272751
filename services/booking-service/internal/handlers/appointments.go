package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/apptchat/libs/httpx"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

type appointmentItem struct {
	ID               string          `json:"id"`
	ConfirmationCode string          `json:"confirmation_code"`
	Service          string          `json:"service"`
	Date             model.Date      `json:"date"`
	StartTime        model.TimeOfDay `json:"start_time"`
	EndTime          model.TimeOfDay `json:"end_time"`
	Status           model.Status    `json:"status"`
	Notes            string          `json:"notes,omitempty"`
}

func toItem(a model.Appointment) appointmentItem {
	return appointmentItem{
		ID:               a.ID,
		ConfirmationCode: a.ConfirmationCode,
		Service:          a.Service.Name,
		Date:             a.Date,
		StartTime:        a.StartTime,
		EndTime:          a.EndTime,
		Status:           a.Status,
		Notes:            a.Notes,
	}
}

type availabilityResponse struct {
	Date     model.Date          `json:"date"`
	Service  string              `json:"service"`
	Duration int                 `json:"duration_minutes"`
	Closed   bool                `json:"closed"`
	Slots    []availability.Slot `json:"slots"`
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	date, err := model.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	biz, err := h.business(r)
	if err != nil {
		h.writeErr(w, r, "load business", err)
		return
	}
	svc, ok := biz.ServiceByName(r.URL.Query().Get("service"))
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "unknown service; choose one of: "+strings.Join(biz.ServiceNames(), ", "))
		return
	}

	resp := availabilityResponse{Date: date, Service: svc.Name, Duration: svc.DurationMinutes, Slots: []availability.Slot{}}
	if _, open := biz.HoursOn(date); !open {
		resp.Closed = true
		httpx.WriteJSON(w, http.StatusOK, resp)
		return
	}
	slots, err := h.slots.AvailableSlots(r.Context(), biz.ID, date, svc.DurationMinutes, biz.BufferTimeMinutes)
	if err != nil {
		h.writeErr(w, r, "list slots", err)
		return
	}
	if slots != nil {
		resp.Slots = slots
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// ListAppointments answers a customer's upcoming appointments. An unknown
// phone has none.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" {
		httpx.WriteError(w, http.StatusBadRequest, "phone is required")
		return
	}
	biz, err := h.business(r)
	if err != nil {
		h.writeErr(w, r, "load business", err)
		return
	}
	items := []appointmentItem{}
	customer, err := h.directory.FindCustomerByPhone(r.Context(), phone)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": items})
		return
	case err != nil:
		h.writeErr(w, r, "find customer", err)
		return
	}
	appts, err := h.bookings.Upcoming(r.Context(), biz, customer.ID)
	if err != nil {
		h.writeErr(w, r, "list appointments", err)
		return
	}
	for _, a := range appts {
		items = append(items, toItem(a))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

func (h *Handler) AppointmentByCode(w http.ResponseWriter, r *http.Request) {
	appt, err := h.bookings.FindByConfirmationCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeErr(w, r, "find appointment", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toItem(appt))
}

// CompleteAppointment records that a customer attended. Only confirmed
// appointments that have started can be completed.
func (h *Handler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.bookings.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, r, "complete appointment", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toItem(appt))
}
