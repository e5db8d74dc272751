// Package notify delivers outbound customer messages.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptchat/libs/events"
	"github.com/md-rashed-zaman/apptchat/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

type Channel interface {
	Send(ctx context.Context, msg events.OutboundMessage) error
}

// WebhookChannel posts {to, body} to an SMS/WhatsApp gateway.
type WebhookChannel struct {
	url   string
	token string
	http  *http.Client
}

func NewWebhookChannel(url, token string) *WebhookChannel {
	return &WebhookChannel{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *WebhookChannel) Send(ctx context.Context, msg events.OutboundMessage) error {
	raw, err := json.Marshal(map[string]string{"to": msg.To, "body": msg.Body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("message webhook returned %d", resp.StatusCode)
	}
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaChannel hands messages to the notification service through Kafka,
// keyed by recipient so one customer's messages stay ordered.
type KafkaChannel struct {
	writer messageWriter
}

func NewKafkaChannel(brokers []string) *KafkaChannel {
	return &KafkaChannel{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  events.TopicNotifyOutbound,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

func (c *KafkaChannel) Send(ctx context.Context, msg events.OutboundMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.writer.WriteMessages(ctx, kafkax.NewMessage(ctx, "", msg.To, value, kafkax.EventMeta{
		EventID:   msg.ID,
		EventType: events.TopicNotifyOutbound,
	}))
}

func (c *KafkaChannel) Close() error { return c.writer.Close() }

// LogChannel writes messages to the log instead of delivering them.
type LogChannel struct {
	Logger *slog.Logger
}

func (c LogChannel) Send(ctx context.Context, msg events.OutboundMessage) error {
	c.Logger.InfoContext(ctx, "outbound message", "kind", msg.Kind, "to", msg.To, "body", msg.Body)
	return nil
}
