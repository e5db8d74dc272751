// Package delivery sends outbound customer messages consumed from Kafka and
// records each attempt.
package delivery

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/apptchat/libs/events"
	"github.com/md-rashed-zaman/apptchat/services/notification-service/internal/sms"
	"github.com/md-rashed-zaman/apptchat/services/notification-service/internal/storage"
)

type Recorder interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Service struct {
	sender     sms.Sender
	recorder   Recorder
	logger     *slog.Logger
	failSuffix string
}

// New builds the delivery handler. Recipients ending in failSuffix are
// recorded as failed without sending, for exercising the failure path.
func New(sender sms.Sender, recorder Recorder, logger *slog.Logger, failSuffix string) *Service {
	return &Service{sender: sender, recorder: recorder, logger: logger, failSuffix: failSuffix}
}

// Handle delivers one message. Malformed payloads are logged and dropped; an
// error is returned only when the attempt could not be recorded.
func (s *Service) Handle(ctx context.Context, msg kafka.Message) error {
	var out events.OutboundMessage
	if err := json.Unmarshal(msg.Value, &out); err != nil {
		s.logger.ErrorContext(ctx, "invalid outbound message", "err", err)
		return nil
	}
	out.To = strings.TrimSpace(out.To)
	if out.ID == "" || out.To == "" || strings.TrimSpace(out.Body) == "" {
		s.logger.ErrorContext(ctx, "outbound message missing fields", "id", out.ID)
		return nil
	}

	n := storage.Notification{
		MessageID:     out.ID,
		Kind:          out.Kind,
		AppointmentID: out.AppointmentID,
		BusinessID:    out.BusinessID,
		Recipient:     out.To,
		Body:          out.Body,
		Status:        storage.StatusSent,
	}
	switch {
	case s.failSuffix != "" && strings.HasSuffix(out.To, s.failSuffix):
		n.Status = storage.StatusFailed
		n.ErrorReason = "simulated failure"
	default:
		if err := s.sender.Send(ctx, out.To, out.Body); err != nil {
			n.Status = storage.StatusFailed
			n.ErrorReason = err.Error()
			s.logger.ErrorContext(ctx, "sms send failed", "err", err, "message_id", out.ID)
		} else {
			n.ProviderID = s.sender.ProviderID()
		}
	}

	if err := s.recorder.Insert(ctx, n); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "message processed", "message_id", out.ID, "kind", out.Kind, "status", n.Status)
	return nil
}
