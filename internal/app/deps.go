// internal/app/deps.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	mongodrv "go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"

	"medconnect-service/internal/cache"
	"medconnect-service/internal/config"
	"medconnect-service/internal/db"
	"medconnect-service/internal/domain/appointment"
	"medconnect-service/internal/domain/plan"
	"medconnect-service/internal/domain/subscription"
	"medconnect-service/internal/domain/usage"
	healthHandler "medconnect-service/internal/handlers/health"
	"medconnect-service/internal/middleware"
	"medconnect-service/internal/pkg/session"
	"medconnect-service/internal/repository/memory"
	mongorepo "medconnect-service/internal/repository/mongo"
	"medconnect-service/internal/repository/postgres"
	assistantUsecase "medconnect-service/internal/service/assistant"
	"medconnect-service/internal/service/email"
)

// appCache is what the services need from a cache.
type appCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	FirstTime(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// infra holds the external connections. Nil fields are backends not configured.
type infra struct {
	cfg      config.AppConfig
	pool     *pgxpool.Pool
	mongo    *mongodrv.Client
	redis    *redis.Client
	sessions *session.Manager
	cache    appCache
}

func connectInfra(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (*infra, error) {
	in := &infra{cfg: cfg}

	// ----- PostgreSQL -----
	if cfg.NeedsPostgres() {
		pool, err := db.ConnectDB(ctx, db.PostgresConfig{
			URL:           cfg.Postgres.URL,
			MaxConns:      cfg.Postgres.MaxConns,
			MinConns:      cfg.Postgres.MinConns,
			RetryAttempts: cfg.Postgres.RetryAttempts,
			RetryInterval: cfg.Postgres.RetryInterval,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		in.pool = pool

		if cfg.Postgres.Migrate {
			if err := db.Migrate(ctx, cfg.Postgres.URL, logger); err != nil {
				in.Close()
				return nil, fmt.Errorf("failed to migrate PostgreSQL: %w", err)
			}
		}
	}

	// ----- MongoDB -----
	if cfg.LedgerBackend == config.BackendMongo {
		client, err := db.ConnectMongo(ctx, db.MongoConfig{
			URL:            cfg.Mongo.URL,
			Database:       cfg.Mongo.Database,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
			RetryAttempts:  cfg.Mongo.RetryAttempts,
			RetryInterval:  cfg.Mongo.RetryInterval,
		}, logger)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		in.mongo = client
	}

	// ----- Redis -----
	if cfg.Redis.Enabled {
		client, err := db.ConnectRedis(ctx, db.RedisConfig{
			Address:       cfg.Redis.Addr,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			PoolSize:      cfg.Redis.PoolSize,
			RetryAttempts: cfg.Redis.RetryAttempts,
			RetryInterval: cfg.Redis.RetryInterval,
		}, logger)
		if err != nil {
			in.Close()
			return nil, err
		}
		in.redis = client
		in.sessions = session.NewManager(client, cfg.Redis.Prefix)
		in.cache = cache.NewRedisCache(client, cfg.Redis.Prefix)
		logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		in.cache = cache.NewMemoryCache()
		logger.Warn("redis disabled: token revocation and API rate limiting are off, cache is per process")
	}

	return in, nil
}

// revocations returns the token revocation list, or nil without Redis.
func (in *infra) revocations() middleware.Revocations {
	if in.sessions == nil {
		return nil
	}
	return in.sessions
}

func (in *infra) rateLimiter() middleware.RateChecker {
	if in.redis == nil {
		return nil
	}
	return session.NewRateLimiter(in.redis, in.cfg.Redis.Prefix)
}

func (in *infra) healthChecks() map[string]healthHandler.Check {
	checks := map[string]healthHandler.Check{}
	if in.pool != nil {
		checks["postgres"] = in.pool.Ping
	}
	if in.mongo != nil {
		checks["mongo"] = func(ctx context.Context) error { return in.mongo.Ping(ctx, nil) }
	}
	if in.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return in.redis.Ping(ctx).Err() }
	}
	return checks
}

func (in *infra) Close() {
	if in.pool != nil {
		in.pool.Close()
	}
	if in.mongo != nil {
		_ = in.mongo.Disconnect(context.Background())
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
}

type stores struct {
	ledger        usage.Ledger
	subscriptions subscription.Repository
	billing       subscription.BillingRepository
	planLogs      subscription.PlanChangeLogRepository
	appointments  appointment.Repository
}

func buildStores(cfg config.AppConfig, in *infra) (*stores, error) {
	st := &stores{}

	switch cfg.LedgerBackend {
	case config.BackendPostgres:
		st.ledger = postgres.NewUsageLedger(in.pool)
	case config.BackendMongo:
		l := mongorepo.NewUsageLedger(in.mongo.Database(cfg.Mongo.Database))
		if err := l.EnsureIndexes(context.Background()); err != nil {
			return nil, err
		}
		st.ledger = l
	default:
		st.ledger = memory.NewUsageLedger()
	}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		st.subscriptions = postgres.NewSubscriptionRepository(in.pool)
		st.billing = postgres.NewBillingRepository(in.pool)
		st.planLogs = postgres.NewPlanChangeLogRepository(in.pool)
		st.appointments = postgres.NewAppointmentRepository(in.pool)
	default:
		ms := memory.NewSubscriptionStore()
		st.subscriptions = ms
		st.billing = ms.Billing()
		st.planLogs = ms.Logs()
		st.appointments = memory.NewAppointmentStore()
	}

	return st, nil
}

func buildCatalog(cfg config.AppConfig) (*plan.Catalog, error) {
	catalog, err := plan.NewCatalog(plan.DefaultPlans(cfg.Limits.AIMessages, cfg.Limits.Appointments))
	if err != nil {
		return nil, fmt.Errorf("failed to build plan catalog: %w", err)
	}
	return catalog, nil
}

// buildEmailSender prefers Postmark, then SMTP, then the log sender.
func buildEmailSender(cfg config.AppConfig, logger *zap.Logger) (email.Sender, error) {
	switch {
	case cfg.Postmark.ServerToken != "":
		sender, err := email.NewPostmarkSender(cfg.Postmark.ServerToken, cfg.Postmark.AccountToken, cfg.Postmark.From)
		if err != nil {
			return nil, fmt.Errorf("failed to configure Postmark: %w", err)
		}
		return sender, nil
	case cfg.SMTP.Host != "":
		return email.NewSMTPSender(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.User,
			cfg.SMTP.Pass,
			cfg.SMTP.FromName,
			cfg.SMTP.Secure,
		), nil
	default:
		logger.Warn("no mail provider configured, emails will only be logged")
		return email.NewLogSender(logger), nil
	}
}

func buildResponder(ctx context.Context, cfg config.AIConfig) (assistantUsecase.Responder, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("AI_GEMINI_API_KEY is required for the gemini provider")
		}
		return assistantUsecase.NewGeminiResponder(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("AI_OPENAI_API_KEY is required for the openai provider")
		}
		return assistantUsecase.NewOpenAIResponder(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	default:
		return assistantUsecase.EchoResponder{}, nil
	}
}
