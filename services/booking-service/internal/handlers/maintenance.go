package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/apptchat/libs/httpx"
)

// SendReminders runs the tomorrow-reminder job for the active business, or
// the one named by ?business_id.
func (h *Handler) SendReminders(w http.ResponseWriter, r *http.Request) {
	biz, err := h.business(r)
	if err != nil {
		h.writeErr(w, r, "load business", err)
		return
	}
	report, err := h.bookings.SendTomorrowReminders(r.Context(), biz.ID)
	if err != nil {
		h.writeErr(w, r, "send reminders", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) UpdateStatuses(w http.ResponseWriter, r *http.Request) {
	biz, err := h.business(r)
	if err != nil {
		h.writeErr(w, r, "load business", err)
		return
	}
	report, err := h.bookings.UpdateAppointmentStatuses(r.Context(), biz.ID)
	if err != nil {
		h.writeErr(w, r, "update statuses", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}
