package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"modelarena/internal/config"
	"modelarena/internal/middleware"
	"modelarena/internal/orchestrator"
	"modelarena/internal/pricing"
	"modelarena/internal/providers"
	"modelarena/internal/queue"
	"modelarena/internal/spend"
	"modelarena/internal/storage"
	"modelarena/internal/utils"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Catalog      *pricing.Catalog
	Accountant   *pricing.Accountant
	Orchestrator *orchestrator.Orchestrator
	History      *storage.ComparisonRepository
	Spend        spend.Tracker
	DB           *storage.DB
	Redis        *storage.RedisClient
	Worker       *storage.HistoryQueueWorker
	Logger       *utils.Logger
}

// Close releases the resources held by the dependency graph, draining the
// history worker first so queued records reach the database.
func (d *Dependencies) Close() error {
	if d.Worker != nil {
		d.Worker.Stop()
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// NewRouter creates an HTTP router with all dependencies wired up.
func NewRouter(cfg *config.Config) (http.Handler, *Dependencies, error) {
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load model catalog: %w", err)
	}
	accountant := pricing.NewAccountant(catalog)

	db, err := storage.NewDB(storage.DBConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Redis is optional: without it the history queue and spend totals
	// live in process memory.
	var redisClient *storage.RedisClient
	if cfg.Redis.Enabled() {
		redisClient, err = storage.NewRedisClient(storage.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
	}

	repo := storage.NewComparisonRepository(db)

	historyQueueCfg := queue.DefaultConfig("history")
	historyQueueCfg.BatchSize = cfg.Queue.BatchSize
	historyQueueCfg.BatchTimeout = cfg.Queue.BatchTimeout
	historyQueueCfg.MaxRetries = cfg.Queue.MaxRetries
	historyQueueCfg.RetryBackoff = cfg.Queue.RetryBackoff

	var historyQueue queue.RecordQueue
	var historyDLQ queue.DeadLetterQueue
	if redisClient != nil {
		historyQueueCfg.UseRedis = true
		historyQueueCfg.RedisAddr = cfg.Redis.Address
		historyQueueCfg.RedisPassword = cfg.Redis.Password
		historyQueueCfg.RedisDB = cfg.Redis.DB

		historyQueue, err = queue.NewRedisQueue(historyQueueCfg)
		if err != nil {
			db.Close()
			redisClient.Close()
			return nil, nil, fmt.Errorf("failed to create history queue: %w", err)
		}
		historyDLQ, err = queue.NewRedisDeadLetterQueue(historyQueueCfg)
		if err != nil {
			db.Close()
			redisClient.Close()
			return nil, nil, fmt.Errorf("failed to create history DLQ: %w", err)
		}
	} else {
		historyQueue = queue.NewMemoryQueue(historyQueueCfg)
		historyDLQ = queue.NewMemoryDeadLetterQueue()
	}

	worker := storage.NewHistoryQueueWorker(historyQueue, historyDLQ, repo, historyQueueCfg)
	worker.Start(context.Background())

	var spendTracker spend.Tracker
	if redisClient != nil {
		spendTracker = spend.NewRedisTracker(redisClient.Client())
	} else {
		spendTracker = spend.NewMemoryTracker()
	}

	registry, err := providers.NewRegistry(providers.RegistryConfig{
		OpenAIAPIKey:     cfg.Providers.OpenAIAPIKey,
		OpenAIBaseURL:    cfg.Providers.OpenAIBaseURL,
		AnthropicAPIKey:  cfg.Providers.AnthropicAPIKey,
		AnthropicBaseURL: cfg.Providers.AnthropicBaseURL,
	})
	if err != nil {
		db.Close()
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	orch := orchestrator.New(catalog, accountant, registry, worker, spendTracker, orchestrator.Config{
		EventBuffer:     cfg.Orchestrator.EventBuffer,
		RequestBudget:   cfg.Orchestrator.RequestBudget,
		SlotIdleTimeout: cfg.Orchestrator.SlotIdleTimeout,
		MaxTokens:       cfg.Orchestrator.MaxTokens,
	})

	deps := &Dependencies{
		Catalog:      catalog,
		Accountant:   accountant,
		Orchestrator: orch,
		History:      repo,
		Spend:        spendTracker,
		DB:           db,
		Redis:        redisClient,
		Worker:       worker,
		Logger:       utils.NewLogger("httpapi", utils.Info),
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps)

	handler := middleware.RequestLogging(utils.NewLogger("http", utils.Info))(mux)

	return handler, deps, nil
}

func loadCatalog(cfg *config.Config) (*pricing.Catalog, error) {
	if cfg.CatalogPath != "" {
		return pricing.LoadCatalog(cfg.CatalogPath)
	}
	return pricing.DefaultCatalog(), nil
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("/api/compare", deps.handleCompare)
	mux.HandleFunc("/api/models", deps.handleModels)

	mux.HandleFunc("/api/history", deps.handleHistory)
	mux.HandleFunc("/api/history/", deps.handleHistoryByID)
	mux.HandleFunc("/api/history/delete", deps.handleHistoryBulkDelete)
	mux.HandleFunc("/api/history/stats", deps.handleHistoryStats)

	mux.HandleFunc("/health", deps.handleHealth)
}
