// Package app builds the booking service components from the environment.
// Both the HTTP service and the maintenance entrypoint wire through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/apptchat/libs/awsx"
	"github.com/md-rashed-zaman/apptchat/libs/config"
	"github.com/md-rashed-zaman/apptchat/libs/db"
	"github.com/md-rashed-zaman/apptchat/libs/kafkax"
	"github.com/md-rashed-zaman/apptchat/libs/runtime"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/classifier"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/knowledge"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/memory"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/orchestrator"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/storage"
)

// Store is everything the service needs from Postgres or the
// in-memory store.
type Store interface {
	ledger.Store
	orchestrator.Store
	FindCustomerByPhone(ctx context.Context, phone string) (model.Customer, error)
	ListBusinessIDs(ctx context.Context) ([]string, error)
	UpsertBusiness(ctx context.Context, b model.Business) error
}

type Backend struct {
	Store Store
	Pool  *db.Pool // nil without DATABASE_URL
	Cold  memory.ColdLog
	KB    knowledge.Retriever
	Ready []runtime.ReadyCheck
}

// ParamStore returns an SSM-backed getter when AWS_SSM_ENABLED is set.
func ParamStore(ctx context.Context, logger *slog.Logger) config.ParamGetter {
	if !config.Bool("AWS_SSM_ENABLED", false) {
		return nil
	}
	cfg, err := awsx.LoadConfig(ctx, config.String("AWS_REGION", ""))
	if err != nil {
		logger.Error("aws config failed; ssm disabled", "err", err)
		return nil
	}
	return awsx.NewParamStoreFromConfig(cfg)
}

// LoadBusiness reads BUSINESS_FILE, or falls back to the built-in demo
// business under BUSINESS_ID.
func LoadBusiness() (model.Business, []model.FAQ, error) {
	if path := config.String("BUSINESS_FILE", ""); path != "" {
		return storage.LoadBusinessFile(path)
	}
	return storage.DefaultBusiness(config.String("BUSINESS_ID", "demo-salon")), nil, nil
}

// OpenBackend connects Postgres when DATABASE_URL is set, applies the schema
// and seeds the business. Without a database everything lives in process.
func OpenBackend(ctx context.Context, dsn string, biz model.Business, faqs []model.FAQ, logger *slog.Logger) (*Backend, error) {
	if dsn == "" {
		logger.Warn("DATABASE_URL not set; using in-memory store")
		mem := storage.NewMemory()
		if err := mem.UpsertBusiness(ctx, biz); err != nil {
			return nil, err
		}
		kb := knowledge.NewStatic()
		kb.Set(biz.ID, faqs)
		return &Backend{Store: mem, Cold: storage.NewMemoryLog(), KB: kb}, nil
	}

	pool, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := storage.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	pg := storage.NewPostgres(pool)
	if err := pg.UpsertBusiness(ctx, biz); err != nil {
		pool.Close()
		return nil, fmt.Errorf("seed business: %w", err)
	}
	if faqs != nil {
		if err := pg.ReplaceFAQ(ctx, biz.ID, faqs); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed faq: %w", err)
		}
	}
	return &Backend{
		Store: pg,
		Pool:  pool,
		Cold:  storage.NewConversationLogRepository(pool),
		KB:    knowledge.NewPostgres(pool),
		Ready: []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}},
	}, nil
}

// OpenRedis returns nil when REDIS_ADDR is empty.
func OpenRedis(ctx context.Context) (*redis.Client, error) {
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

// ColdLog picks the append-only conversation log: MEMORY_COLD_LOG=dynamodb
// uses DYNAMODB_TABLE, anything else keeps the backend's log.
func ColdLog(ctx context.Context, b *Backend, logger *slog.Logger) memory.ColdLog {
	if strings.ToLower(config.String("MEMORY_COLD_LOG", "")) != "dynamodb" {
		return b.Cold
	}
	cfg, err := awsx.LoadConfig(ctx, config.String("AWS_REGION", ""))
	if err != nil {
		logger.Error("aws config failed; keeping default cold log", "err", err)
		return b.Cold
	}
	log, err := memory.NewDynamoLog(dynamodb.NewFromConfig(cfg), config.String("DYNAMODB_TABLE", ""), coldRetention(logger))
	if err != nil {
		logger.Error("dynamodb cold log unavailable; keeping default", "err", err)
		return b.Cold
	}
	return log
}

// coldRetention is DYNAMODB_RETENTION, zero by default. The cold log is the
// recovery source of last resort, so items never expire unless an operator
// opts in.
func coldRetention(logger *slog.Logger) time.Duration {
	retention, err := config.Duration("DYNAMODB_RETENTION", 0)
	if err != nil {
		logger.Warn("invalid DYNAMODB_RETENTION; keeping items indefinitely", "err", err)
		return 0
	}
	return retention
}

func NewMemory(rdb *redis.Client, cold memory.ColdLog, logger *slog.Logger) (*memory.Tiered, error) {
	localTTL, err := config.Duration("MEMORY_LOCAL_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	localMax, err := config.Int("MEMORY_LOCAL_MAX", 1000)
	if err != nil {
		return nil, err
	}
	fastTTL, err := config.Duration("MEMORY_FAST_TTL", memory.DefaultFastTTL)
	if err != nil {
		return nil, err
	}
	history, err := config.Int("MEMORY_HISTORY_LIMIT", memory.DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}

	var fast memory.FastStore
	if rdb != nil {
		fast = memory.NewRedisStore(rdb, fastTTL)
	}
	return memory.NewTiered(memory.NewLocalCache(localTTL, localMax), fast, cold, logger, memory.Options{
		HistoryLimit: history,
		ColdLimit:    history / 2,
	}), nil
}

// NewClassifier picks CLASSIFIER_PROVIDER (openai, anthropic, keyword). When
// unset, the first provider with a key wins and keyword is the fallback.
func NewClassifier(ctx context.Context, biz model.Business, params config.ParamGetter, logger *slog.Logger) (*classifier.Bounded, error) {
	cal := classifier.Calendar{Location: biz.Location(), Now: time.Now}
	openaiKey, err := config.Secret(ctx, "OPENAI_API_KEY", params)
	if err != nil {
		return nil, err
	}
	anthropicKey, err := config.Secret(ctx, "ANTHROPIC_API_KEY", params)
	if err != nil {
		return nil, err
	}
	timeout, err := config.Duration("CLASSIFIER_TIMEOUT", 8*time.Second)
	if err != nil {
		return nil, err
	}

	provider := strings.ToLower(config.String("CLASSIFIER_PROVIDER", ""))
	if provider == "" {
		switch {
		case openaiKey != "":
			provider = "openai"
		case anthropicKey != "":
			provider = "anthropic"
		default:
			provider = "keyword"
		}
	}

	var inner classifier.Classifier
	switch provider {
	case "openai":
		if openaiKey == "" {
			return nil, errors.New("CLASSIFIER_PROVIDER=openai needs OPENAI_API_KEY")
		}
		inner = classifier.NewOpenAI(openaiKey, cal, func(o *classifier.OpenAIOptions) {
			if m := config.String("OPENAI_MODEL", ""); m != "" {
				o.Model = m
			}
		})
	case "anthropic":
		if anthropicKey == "" {
			return nil, errors.New("CLASSIFIER_PROVIDER=anthropic needs ANTHROPIC_API_KEY")
		}
		inner = classifier.NewAnthropic(anthropicKey, cal)
	case "keyword":
		inner = classifier.NewKeyword(biz.ServiceNames(), cal)
	default:
		return nil, fmt.Errorf("unknown CLASSIFIER_PROVIDER %q", provider)
	}
	logger.Info("classifier configured", "provider", provider)
	return classifier.NewBounded(inner, timeout, logger), nil
}

// NewChannel picks NOTIFY_CHANNEL (webhook, kafka, log).
func NewChannel(ctx context.Context, params config.ParamGetter, logger *slog.Logger) (notify.Channel, func() error, error) {
	nop := func() error { return nil }
	switch strings.ToLower(config.String("NOTIFY_CHANNEL", "log")) {
	case "webhook":
		token, err := config.Secret(ctx, "NOTIFY_WEBHOOK_TOKEN", params)
		if err != nil {
			return nil, nop, err
		}
		url, err := config.RequiredString("NOTIFY_WEBHOOK_URL")
		if err != nil {
			return nil, nop, err
		}
		return notify.NewWebhookChannel(url, token), nop, nil
	case "kafka":
		brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
		if len(brokers) == 0 {
			return nil, nop, errors.New("NOTIFY_CHANNEL=kafka needs KAFKA_BROKERS")
		}
		ch := notify.NewKafkaChannel(brokers)
		return ch, ch.Close, nil
	default:
		return notify.LogChannel{Logger: logger}, nop, nil
	}
}

// NewSink picks OUTBOX_SINK (kafka, nats, log).
func NewSink(logger *slog.Logger) (outbox.Sink, error) {
	switch strings.ToLower(config.String("OUTBOX_SINK", "log")) {
	case "kafka":
		brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
		if len(brokers) == 0 {
			return nil, errors.New("OUTBOX_SINK=kafka needs KAFKA_BROKERS")
		}
		return outbox.NewKafkaSink(brokers), nil
	case "nats":
		return outbox.NewNATSSink(config.String("NATS_URL", "nats://localhost:4222"))
	default:
		return outbox.LogSink{Logf: logger.Info}, nil
	}
}
