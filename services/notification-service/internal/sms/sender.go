// Package sms delivers text messages to customer phones, over a generic
// gateway webhook or Twilio's WhatsApp channel.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, to, body string) error
	ProviderID() string
}

func newHTTPClient() *http.Client { return &http.Client{Timeout: 5 * time.Second} }

// WebhookSender posts {to, body} to an SMS gateway.
type WebhookSender struct {
	url   string
	token string
	http  *http.Client
}

func NewWebhookSender(url, token string) *WebhookSender {
	return &WebhookSender{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http:  newHTTPClient(),
	}
}

func (s *WebhookSender) ProviderID() string { return "sms-webhook" }

func (s *WebhookSender) Send(ctx context.Context, to, body string) error {
	if s.url == "" {
		return errors.New("sms webhook url not configured")
	}
	raw, err := json.Marshal(map[string]string{"to": to, "body": body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	return do(s.http, req, "sms webhook")
}

// TwilioSender sends WhatsApp messages through the Twilio Messages API.
type TwilioSender struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	http       *http.Client
}

const twilioAPI = "https://api.twilio.com"

func NewTwilioSender(accountSID, authToken, from string) (*TwilioSender, error) {
	accountSID, authToken, from = strings.TrimSpace(accountSID), strings.TrimSpace(authToken), strings.TrimSpace(from)
	if accountSID == "" || authToken == "" {
		return nil, errors.New("twilio credentials not set")
	}
	if from == "" {
		return nil, errors.New("twilio whatsapp sender not set")
	}
	return &TwilioSender{
		baseURL:    twilioAPI,
		accountSID: accountSID,
		authToken:  authToken,
		from:       WhatsAppAddress(from),
		http:       newHTTPClient(),
	}, nil
}

func (s *TwilioSender) ProviderID() string { return "twilio-whatsapp" }

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	dest := WhatsAppAddress(to)
	if dest == "whatsapp:" {
		return errors.New("missing destination number")
	}
	form := url.Values{"From": {s.from}, "To": {dest}, "Body": {body}}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)
	return do(s.http, req, "twilio")
}

// WhatsAppAddress strips everything but digits and a leading plus and adds
// the whatsapp: scheme.
func WhatsAppAddress(phone string) string {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:")
	var b strings.Builder
	for i, r := range phone {
		if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return "whatsapp:" + b.String()
}

func do(client *http.Client, req *http.Request, provider string) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// LogSender logs messages instead of sending them; for local runs.
type LogSender struct {
	Logger *slog.Logger
}

func (LogSender) ProviderID() string { return "sms-log" }

func (s LogSender) Send(ctx context.Context, to, body string) error {
	s.Logger.InfoContext(ctx, "sms", "to", to, "body", body)
	return nil
}
