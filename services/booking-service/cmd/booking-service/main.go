package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/md-rashed-zaman/apptchat/libs/config"
	"github.com/md-rashed-zaman/apptchat/libs/grpcx"
	"github.com/md-rashed-zaman/apptchat/libs/httpx"
	otelx "github.com/md-rashed-zaman/apptchat/libs/otel"
	"github.com/md-rashed-zaman/apptchat/libs/runtime"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/app"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/dialog"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/jobs"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/orchestrator"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/outbox"
)

func main() {
	_ = runtime.LoadDotEnv()
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9083")
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

	params := app.ParamStore(ctx, logger)
	biz, faqs, err := app.LoadBusiness()
	if err != nil {
		logger.Error("business config failed", "err", err)
		panic(err)
	}
	dsn, err := config.Secret(ctx, "DATABASE_URL", params)
	if err != nil {
		panic(err)
	}
	be, err := app.OpenBackend(ctx, dsn, biz, faqs, logger)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		panic(err)
	}
	if be.Pool != nil {
		defer be.Pool.Close()
	}

	rdb, err := app.OpenRedis(ctx)
	if err != nil {
		logger.Warn("redis unavailable; running without fast memory tier", "err", err)
	}
	ready := be.Ready
	if rdb != nil {
		defer rdb.Close()
		ready = append(ready, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	mem, err := app.NewMemory(rdb, app.ColdLog(ctx, be, logger), logger)
	if err != nil {
		panic(err)
	}
	cls, err := app.NewClassifier(ctx, biz, params, logger)
	if err != nil {
		logger.Error("classifier init failed", "err", err)
		panic(err)
	}
	channel, closeChannel, err := app.NewChannel(ctx, params, logger)
	if err != nil {
		logger.Error("notification channel init failed", "err", err)
		panic(err)
	}
	defer func() { _ = closeChannel() }()
	dispatcher := notify.NewDispatcher(channel, logger, 16, 10*time.Second)

	l := ledger.New(be.Store, dispatcher, logger)
	machine := dialog.New(cls, l, l.Availability(), be.KB, logger)
	orch := orchestrator.New(biz.ID, be.Store, mem, machine, logger)
	if _, err := orch.CheckBusiness(ctx); err != nil {
		logger.Error("active business missing", "err", err)
		panic(err)
	}

	api := handlers.New(handlers.Deps{
		Turns:         orch,
		Conversations: mem,
		Directory:     be.Store,
		Bookings:      l,
		Slots:         l.Availability(),
		Sender:        dispatcher,
	}, logger)

	rateLimit, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	var limiter httpx.Middleware
	if rdb != nil {
		limiter = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, "rl:booking").Middleware(logger, true)
	} else {
		limiter = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
	}
	router := api.Routes(ready,
		httpx.WithRecover(logger),
		limiter,
		httpx.WithBodyLimit(64<<10),
		httpx.WithTimeout(30*time.Second),
	)
	handler := httpx.Chain(router,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		cors.Handler(cors.Options{
			AllowedOrigins: []string{config.String("CORS_ALLOWED_ORIGIN", "*")},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}),
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, "booking"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	health := grpcx.NewHealthServer(logger)
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if be.Pool != nil {
		sink, err := app.NewSink(logger)
		if err != nil {
			logger.Error("outbox sink init failed", "err", err)
			panic(err)
		}
		publisher := outbox.NewPublisher(be.Pool, outbox.NewRepository(be.Pool), sink, logger, outbox.PublisherConfig{})
		g.Go(func() error { return publisher.Run(gctx) })
	}
	if config.Bool("MAINTENANCE_WORKER_ENABLED", true) {
		interval, err := config.Duration("MAINTENANCE_INTERVAL", time.Hour)
		if err != nil {
			panic(err)
		}
		worker := jobs.NewWorker(l, be.Store, logger, jobs.WorkerConfig{Interval: interval})
		g.Go(func() error { return worker.Run(gctx) })
	}
	g.Go(func() error {
		health.SetServing(service, true)
		logger.Info("grpc health server starting", "addr", lis.Addr().String())
		return health.Serve(gctx, lis)
	})
	g.Go(func() error {
		logger.Info("http server starting", "addr", srv.Addr, "business_id", biz.ID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "err", err)
		}
		if err := dispatcher.Drain(shutdownCtx); err != nil {
			logger.Warn("pending notifications dropped", "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("booking service stopped with error", "err", err)
	}
	logger.Info("booking service stopped")
}
