package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/md-rashed-zaman/apptchat/libs/events"
	"github.com/md-rashed-zaman/apptchat/libs/httpx"
)

type messageRequest struct {
	Phone   string `json:"phone"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Deliver bool   `json:"deliver"`
}

type messageResponse struct {
	Reply     string `json:"reply"`
	Delivered bool   `json:"delivered"`
}

// PostMessage runs one conversation turn. With deliver set the reply is also
// sent through the notification channel; a failed send is logged and reported
// in the response but does not fail the turn.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	reply, err := h.turns.HandleTurn(r.Context(), req.Phone, req.Name, req.Message)
	if err != nil {
		h.writeErr(w, r, "handle turn", err)
		return
	}

	resp := messageResponse{Reply: reply}
	if req.Deliver && h.sender != nil {
		err := h.sender.Send(r.Context(), events.OutboundMessage{
			ID:         uuid.NewString(),
			Kind:       events.KindReply,
			To:         strings.TrimSpace(req.Phone),
			Body:       reply,
			BusinessID: h.turns.BusinessID(),
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			h.logger.WarnContext(r.Context(), "reply delivery failed",
				"err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		} else {
			resp.Delivered = true
		}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) ForgetConversation(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(chi.URLParam(r, "phone"))
	if phone == "" {
		httpx.WriteError(w, http.StatusBadRequest, "phone is required")
		return
	}
	if err := h.conversations.Forget(r.Context(), phone); err != nil {
		h.writeErr(w, r, "forget conversation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
