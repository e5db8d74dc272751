package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/md-rashed-zaman/apptchat/libs/awsx"
	"github.com/md-rashed-zaman/apptchat/libs/config"
	"github.com/md-rashed-zaman/apptchat/libs/db"
	"github.com/md-rashed-zaman/apptchat/libs/events"
	"github.com/md-rashed-zaman/apptchat/libs/httpx"
	"github.com/md-rashed-zaman/apptchat/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptchat/libs/otel"
	"github.com/md-rashed-zaman/apptchat/libs/runtime"
	"github.com/md-rashed-zaman/apptchat/services/notification-service/internal/consumer"
	"github.com/md-rashed-zaman/apptchat/services/notification-service/internal/delivery"
	"github.com/md-rashed-zaman/apptchat/services/notification-service/internal/inbox"
	"github.com/md-rashed-zaman/apptchat/services/notification-service/internal/sms"
	"github.com/md-rashed-zaman/apptchat/services/notification-service/internal/storage"
)

func main() {
	_ = runtime.LoadDotEnv()
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()
	if err := storage.Migrate(ctx, pool); err != nil {
		logger.Error("migration failed", "err", err)
		panic(err)
	}

	var params config.ParamGetter
	if config.Bool("AWS_SSM_ENABLED", false) {
		awsCfg, err := awsx.LoadConfig(ctx, config.String("AWS_REGION", ""))
		if err != nil {
			logger.Error("aws config failed", "err", err)
		} else {
			params = awsx.NewParamStoreFromConfig(awsCfg)
		}
	}

	var sender sms.Sender
	switch strings.ToLower(config.String("SMS_PROVIDER", "log")) {
	case "twilio":
		authToken, err := config.Secret(ctx, "TWILIO_AUTH_TOKEN", params)
		if err != nil {
			logger.Error("twilio token lookup failed", "err", err)
			panic(err)
		}
		tw, err := sms.NewTwilioSender(config.String("TWILIO_ACCOUNT_SID", ""), authToken, config.String("TWILIO_WHATSAPP_FROM", ""))
		if err != nil {
			logger.Error("twilio sender init failed", "err", err)
			panic(err)
		}
		sender = tw
	case "webhook":
		token, err := config.Secret(ctx, "SMS_WEBHOOK_TOKEN", params)
		if err != nil {
			logger.Error("sms token lookup failed", "err", err)
		}
		sender = sms.NewWebhookSender(config.String("SMS_WEBHOOK_URL", ""), token)
	default:
		sender = sms.LogSender{Logger: logger}
	}
	logger.Info("sms provider configured", "provider", sender.ProviderID())

	brokers := config.String("KAFKA_BROKERS", "")
	svc := delivery.New(sender, storage.NewRepository(pool), logger, config.String("NOTIFICATION_FAIL_SUFFIX", ""))
	eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", events.TopicNotifyOutbound),
	}, svc.Handle)

	mux := http.NewServeMux()
	mux.Handle("/healthz", runtime.HealthHandler())
	mux.Handle("/readyz", runtime.ReadyHandler(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	))
	handler := httpx.Chain(mux, httpx.WithRequestID, httpx.WithAccessLog(logger))
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, "notification"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eventConsumer.Run(gctx) })
	g.Go(func() error {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("notification service stopped with error", "err", err)
	}
	logger.Info("notification service stopped")
}
