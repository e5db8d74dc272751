package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhatsAppAddress(t *testing.T) {
	assert.Equal(t, "whatsapp:+254700000001", WhatsAppAddress("+254 700-000-001"))
	assert.Equal(t, "whatsapp:+254700000001", WhatsAppAddress("whatsapp:+254700000001"))
	assert.Equal(t, "whatsapp:254700", WhatsAppAddress("254+700"))
}

func TestTwilioSenderPostsForm(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		got = r
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s, err := NewTwilioSender("AC123", "secret", "+14155238886")
	require.NoError(t, err)
	s.baseURL = srv.URL

	require.NoError(t, s.Send(context.Background(), "+254700000001", "See you at 10:00 AM"))
	require.NotNil(t, got)
	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", got.URL.Path)
	user, pass, ok := got.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "AC123", user)
	assert.Equal(t, "secret", pass)
	assert.Equal(t, "whatsapp:+14155238886", got.PostForm.Get("From"))
	assert.Equal(t, "whatsapp:+254700000001", got.PostForm.Get("To"))
	assert.Equal(t, "See you at 10:00 AM", got.PostForm.Get("Body"))
}

func TestTwilioSenderReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"invalid To"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	s, err := NewTwilioSender("AC123", "secret", "+14155238886")
	require.NoError(t, err)
	s.baseURL = srv.URL

	err = s.Send(context.Background(), "+254700000001", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid To")

	assert.Error(t, s.Send(context.Background(), "  ", "hi"))
}

func TestNewTwilioSenderNeedsConfig(t *testing.T) {
	_, err := NewTwilioSender("", "secret", "+1")
	assert.Error(t, err)
	_, err = NewTwilioSender("AC1", "secret", "")
	assert.Error(t, err)
}

func TestWebhookSender(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhookSender(srv.URL, "tok").Send(context.Background(), "+1", "hi"))
	assert.Equal(t, "Bearer tok", auth)
	assert.Error(t, NewWebhookSender("", "").Send(context.Background(), "+1", "hi"))
}
