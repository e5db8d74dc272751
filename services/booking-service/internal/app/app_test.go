package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/storage"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestLoadBusinessFallsBackToDemo(t *testing.T) {
	t.Setenv("BUSINESS_FILE", "")
	t.Setenv("BUSINESS_ID", "salon-1")
	biz, faqs, err := LoadBusiness()
	require.NoError(t, err)
	assert.Equal(t, "salon-1", biz.ID)
	assert.Equal(t, "Demo Salon", biz.Name)
	assert.Empty(t, faqs)
}

func TestLoadBusinessFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "business.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
id: glow
name: Glow
timezone: Africa/Nairobi
working_hours:
  monday: {open: "09:00", close: "17:00"}
services:
  - {name: Haircut, duration: 30, price: 500}
faq:
  - {title: Parking, body: Behind the building.}
`), 0o600))
	t.Setenv("BUSINESS_FILE", path)

	biz, faqs, err := LoadBusiness()
	require.NoError(t, err)
	assert.Equal(t, "glow", biz.ID)
	require.Len(t, faqs, 1)
	assert.Equal(t, "Parking", faqs[0].Title)
}

func TestOpenBackendInMemory(t *testing.T) {
	ctx := context.Background()
	biz := storage.DefaultBusiness("biz")
	be, err := OpenBackend(ctx, "", biz, nil, quiet())
	require.NoError(t, err)
	assert.Nil(t, be.Pool)
	assert.Empty(t, be.Ready)

	got, err := be.Store.GetBusiness(ctx, "biz")
	require.NoError(t, err)
	assert.Equal(t, biz.Name, got.Name)
	assert.IsType(t, &storage.MemoryLog{}, be.Cold)
}

func TestNewClassifierDefaultsToKeyword(t *testing.T) {
	t.Setenv("CLASSIFIER_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	c, err := NewClassifier(context.Background(), storage.DefaultBusiness("biz"), nil, quiet())
	require.NoError(t, err)

	res, err := c.Classify(context.Background(), "I'd like to book a manicure", "")
	require.NoError(t, err)
	assert.Equal(t, "book_appointment", string(res.Intent))
	require.NotNil(t, res.Fields.Service)
	assert.Equal(t, "Manicure", *res.Fields.Service)
}

func TestNewClassifierRequiresKey(t *testing.T) {
	t.Setenv("CLASSIFIER_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClassifier(context.Background(), storage.DefaultBusiness("biz"), nil, quiet())
	assert.Error(t, err)

	t.Setenv("CLASSIFIER_PROVIDER", "carrier-pigeon")
	_, err = NewClassifier(context.Background(), storage.DefaultBusiness("biz"), nil, quiet())
	assert.Error(t, err)
}

func TestChannelAndSinkDefaults(t *testing.T) {
	t.Setenv("NOTIFY_CHANNEL", "")
	ch, closeFn, err := NewChannel(context.Background(), nil, quiet())
	require.NoError(t, err)
	assert.IsType(t, notify.LogChannel{}, ch)
	assert.NoError(t, closeFn())

	t.Setenv("NOTIFY_CHANNEL", "kafka")
	t.Setenv("KAFKA_BROKERS", "")
	_, _, err = NewChannel(context.Background(), nil, quiet())
	assert.Error(t, err)

	t.Setenv("OUTBOX_SINK", "")
	sink, err := NewSink(quiet())
	require.NoError(t, err)
	assert.IsType(t, outbox.LogSink{}, sink)
}

func TestColdRetentionDefaultsToForever(t *testing.T) {
	t.Setenv("DYNAMODB_RETENTION", "")
	assert.Zero(t, coldRetention(quiet()))

	t.Setenv("DYNAMODB_RETENTION", "720h")
	assert.Equal(t, 30*24*time.Hour, coldRetention(quiet()))

	t.Setenv("DYNAMODB_RETENTION", "soon")
	assert.Zero(t, coldRetention(quiet()))
}

func TestNewMemoryHonorsHistoryLimit(t *testing.T) {
	t.Setenv("MEMORY_HISTORY_LIMIT", "8")
	mem, err := NewMemory(nil, nil, quiet())
	require.NoError(t, err)
	assert.Equal(t, 8, mem.HistoryLimit())
}
