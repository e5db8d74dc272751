// Command booking-maintenance runs the reminder and no-show jobs for every
// business. Under AWS Lambda it handles scheduled events; elsewhere it runs
// one pass and exits.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/md-rashed-zaman/apptchat/libs/config"
	"github.com/md-rashed-zaman/apptchat/libs/runtime"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/app"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/jobs"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/notify"
)

type handler struct {
	worker *jobs.Worker
	logger *slog.Logger
}

func (h handler) Handle(ctx context.Context, evt events.CloudWatchEvent) (jobs.Summary, error) {
	h.logger.InfoContext(ctx, "maintenance triggered", "source", evt.Source, "id", evt.ID)
	return h.worker.RunOnce(ctx)
}

func main() {
	_ = runtime.LoadDotEnv()
	logger := runtime.NewLogger(config.String("SERVICE_NAME", "booking-maintenance"))
	ctx := context.Background()

	params := app.ParamStore(ctx, logger)
	biz, faqs, err := app.LoadBusiness()
	if err != nil {
		logger.Error("business config failed", "err", err)
		os.Exit(1)
	}
	dsn, err := config.Secret(ctx, "DATABASE_URL", params)
	if err != nil || dsn == "" {
		logger.Error("DATABASE_URL is required", "err", err)
		os.Exit(1)
	}
	be, err := app.OpenBackend(ctx, dsn, biz, faqs, logger)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	defer be.Pool.Close()

	channel, closeChannel, err := app.NewChannel(ctx, params, logger)
	if err != nil {
		logger.Error("notification channel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = closeChannel() }()

	dispatcher := notify.NewDispatcher(channel, logger, 4, 10*time.Second)
	l := ledger.New(be.Store, dispatcher, logger)
	h := handler{worker: jobs.NewWorker(l, be.Store, logger, jobs.WorkerConfig{}), logger: logger}

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(h.Handle)
		return
	}

	sum, err := h.worker.RunOnce(ctx)
	_ = json.NewEncoder(os.Stdout).Encode(sum)
	if err != nil {
		logger.Error("maintenance failed", "err", err)
		os.Exit(1)
	}
}
