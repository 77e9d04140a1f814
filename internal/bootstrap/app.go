package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"docchat/internal/ai"
	"docchat/internal/app"
	"docchat/internal/cache"
	"docchat/internal/config"
	"docchat/internal/kv"
	"docchat/internal/logger"
	"docchat/internal/metrics"
	"docchat/internal/model"
	"docchat/internal/pkg/pdfextract"
	mysqlClient "docchat/internal/platform/mysql"
	rabbitmqClient "docchat/internal/platform/rabbitmq"
	redisClient "docchat/internal/platform/redis"
	sqliteClient "docchat/internal/platform/sqlite"
	"docchat/internal/repository"
	"docchat/internal/worker"
)

type App struct {
	Config  *config.Config
	Log     zerolog.Logger
	Metrics *metrics.Metrics

	DB             *gorm.DB
	Redis          *redis.Client
	MQConn         *amqp.Connection
	ActivityWorker *worker.ActivityPersistWorker
	Store          kv.Store

	Auth      *app.AuthService
	Documents *app.DocumentService
	Chat      *app.ChatService
	Activity  *app.ActivityService

	StartedAt time.Time
}

type options struct {
	completer ai.Completer
	extractor pdfextract.Extractor
	logger    *zerolog.Logger
}

// Option replaces a collaborator that would otherwise be built from config.
type Option func(*options)

func WithCompleter(c ai.Completer) Option {
	return func(o *options) { o.completer = c }
}

func WithExtractor(e pdfextract.Extractor) Option {
	return func(o *options) { o.extractor = e }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return Assemble(ctx, cfg)
}

// Assemble connects every dependency cfg enables and builds the services.
// On error the resources opened so far are closed.
func Assemble(ctx context.Context, cfg *config.Config, opts ...Option) (a *App, err error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	a = &App{
		Config:    cfg,
		Metrics:   metrics.New(),
		StartedAt: time.Now(),
	}
	if o.logger != nil {
		a.Log = *o.logger
	} else {
		a.Log = logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Service: cfg.App.Name})
	}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	if a.DB, err = openDatabase(ctx, cfg.Database); err != nil {
		return a, err
	}
	if err = a.DB.AutoMigrate(&model.User{}, &model.Activity{}, &model.KVEntry{}); err != nil {
		return a, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	if a.Store, err = a.openStore(ctx); err != nil {
		return a, err
	}

	activityRepo := repository.NewActivityRepository(a.DB)
	var publisher app.ActivityPublisher
	if cfg.RabbitMQ.Enabled {
		if a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL); err != nil {
			return a, err
		}
		a.ActivityWorker = worker.NewActivityPersistWorker(
			a.MQConn, activityRepo, cfg.RabbitMQ.ActivityQueue, logger.Component(a.Log, "activity_worker"),
		)
		if err = a.ActivityWorker.Start(ctx); err != nil {
			return a, fmt.Errorf("start activity worker failed: %w", err)
		}
		publisher = rabbitmqClient.NewActivityPublisher(a.MQConn, cfg.RabbitMQ.ActivityQueue)
	}

	completer := o.completer
	if completer == nil {
		if completer, err = newCompleter(ctx, cfg.LLM); err != nil {
			return a, err
		}
		if cfg.LLM.APIKey == "" {
			a.Log.Warn().Str("llm_provider", cfg.LLM.Provider).Msg("llm api key is empty, replies will be apologies")
		}
	}
	extractor := o.extractor
	if extractor == nil {
		extractor = pdfextract.NewPDFExtractor()
	}

	workspaces := app.NewWorkspaces(a.Store)
	assistant := ai.NewAssistant(completer, cfg.LLM.MaxContextChars, a.Metrics, logger.Component(a.Log, "assistant"))

	a.Activity = app.NewActivityService(activityRepo, publisher, a.Metrics, logger.Component(a.Log, "activity"))
	a.Documents = app.NewDocumentService(
		workspaces, extractor, a.Activity, a.Metrics, logger.Component(a.Log, "documents"), cfg.Upload.MaxBytes,
	)
	a.Chat = app.NewChatService(
		workspaces, assistant, a.Activity, logger.Component(a.Log, "chat"), cfg.Chat.LegacyGlobalContext,
	)
	a.Auth = app.NewAuthService(
		repository.NewUserRepository(a.DB),
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
		logger.Component(a.Log, "auth"),
	)

	a.Log.Info().
		Str("database", cfg.Database.Driver).
		Str("store", cfg.Store.Driver).
		Bool("store_cache", a.Redis != nil && cfg.Store.Driver == config.StoreDatabase).
		Str("llm_provider", cfg.LLM.Provider).
		Bool("auth", cfg.Auth.Enabled).
		Bool("rabbitmq", cfg.RabbitMQ.Enabled).
		Msg("application assembled")
	return a, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case config.DatabaseMySQL:
		return mysqlClient.New(ctx, cfg)
	default:
		return sqliteClient.New(ctx, cfg.SQLitePath)
	}
}

func (a *App) openStore(ctx context.Context) (kv.Store, error) {
	var store kv.Store
	switch a.Config.Store.Driver {
	case config.StoreMemory:
		store = kv.NewMemoryStore()
	case config.StoreRedis:
		client, err := redisClient.New(ctx, a.Config.Redis)
		if err != nil {
			return nil, err
		}
		a.Redis = client
		store = kv.NewRedisStore(client, a.Config.Redis.KeyPrefix)
	default:
		store = kv.NewGormStore(a.DB)
		if a.Config.Store.RedisCache {
			client, err := redisClient.New(ctx, a.Config.Redis)
			if err != nil {
				return nil, err
			}
			a.Redis = client
			store = cache.NewStoreCache(
				store,
				client,
				a.Config.Redis.KeyPrefix,
				time.Duration(a.Config.Redis.CacheTTL)*time.Second,
				0,
				logger.Component(a.Log, "store_cache"),
			)
		}
	}
	return kv.WithQuota(store, a.Config.Store.MaxValueBytes), nil
}

func newCompleter(ctx context.Context, cfg config.LLMConfig) (ai.Completer, error) {
	if cfg.APIKey == "" {
		return ai.Unconfigured{}, nil
	}
	if cfg.Provider == config.ProviderOpenAI {
		return ai.NewOpenAICompatibleClient(ai.ChatConfig{
			BaseURL:         cfg.BaseURL,
			APIKey:          cfg.APIKey,
			Model:           cfg.Model,
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			MaxOutputTokens: cfg.MaxOutputTokens,
		}), nil
	}
	return ai.NewGeminiCompleter(ctx, ai.GeminiConfig{
		APIKey:          cfg.APIKey,
		Model:           cfg.Model,
		Temperature:     cfg.Temperature,
		TopK:            cfg.TopK,
		TopP:            cfg.TopP,
		MaxOutputTokens: cfg.MaxOutputTokens,
	})
}

func (a *App) Close() error {
	var closeErr error
	if a.ActivityWorker != nil {
		a.ActivityWorker.Close()
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
