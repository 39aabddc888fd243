package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"justicebench/internal/analysis"
	"justicebench/internal/batch"
	"justicebench/internal/cases"
	"justicebench/internal/llm"
	openai "justicebench/internal/llm/openai"
	"justicebench/internal/sessions"
	"justicebench/internal/shared/config"
	"justicebench/internal/shared/metrics"
	"justicebench/internal/shared/server"
	"justicebench/internal/shared/storage/db"
	"justicebench/internal/shared/storage/object"
	localstore "justicebench/internal/shared/storage/object/local"
	s3store "justicebench/internal/shared/storage/object/s3"
	"justicebench/internal/shared/telemetry"
)

const (
	defaultS3Region = "us-east-1"
	sweepInterval   = 10 * time.Minute
)

// App holds shared dependencies and the wired router.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Store           object.ObjectStore
	LLM             llm.Client
	CaseRepo        cases.Repo
	SessionStore    sessions.Store
	Registry        *batch.Registry
	Pool            *batch.Pool
	CaseService     *cases.Service
	AnalysisService *analysis.Service
	SessionService  *sessions.Service
	CaseHandler     *cases.Handler
	BatchHandler    *batch.Handler
	AnalysisHandler *analysis.Handler
	SessionHandler  *sessions.Handler

	closers []func() error
}

// Build prepares shared dependencies and wires routes.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if sqlDB != nil {
		app.DB = sqlDB
		app.closers = append(app.closers, sqlDB.Close)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	client, err := buildLLM(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.LLM = client

	sessionStore, err := buildSessionStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.SessionStore = sessionStore
	if rs, ok := sessionStore.(*sessions.RedisStore); ok {
		app.closers = append(app.closers, rs.Close)
	}

	if err := buildServices(app); err != nil {
		app.Close()
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		CaseHandler:     app.CaseHandler,
		BatchHandler:    app.BatchHandler,
		AnalysisHandler: app.AnalysisHandler,
		SessionHandler:  app.SessionHandler,
	})

	return app, nil
}

// StartBackground launches the batch retention sweeper. It stops with ctx.
func (a *App) StartBackground(ctx context.Context) {
	a.Registry.StartSweeper(ctx, a.Config.BatchRetention, sweepInterval)
}

// Close releases database and cache connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Info("bootstrap.db_memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			sqlDB.Close()
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db_memory", map[string]any{"error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		region := cfg.AWSRegion
		if strings.TrimSpace(region) == "" {
			region = defaultS3Region
		}
		return s3store.New(ctx, region, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	if cfg.LLMProvider != "openai" || strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		telemetry.Warn("bootstrap.llm_placeholder", map[string]any{"provider": cfg.LLMProvider})
		return llm.PlaceholderClient{}, nil
	}
	client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.OpenAIBaseURL)
	if err != nil {
		return nil, err
	}
	return llm.NewRetrying(client), nil
}

func buildSessionStore(ctx context.Context, cfg config.Config) (sessions.Store, error) {
	if cfg.SessionStore != "redis" {
		return sessions.NewMemoryStore(cfg.SessionTTL), nil
	}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, fmt.Errorf("SESSION_STORE=redis requires REDIS_URL")
	}
	return sessions.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL)
}

func buildServices(app *App) error {
	if app.DB != nil {
		app.CaseRepo = &cases.PGRepo{DB: app.DB}
	} else {
		app.CaseRepo = cases.NewMemoryRepo()
	}

	app.Registry = batch.NewRegistry()
	app.Pool = batch.NewPool(app.Registry, app.Config.BatchMaxWorkers)
	registry := app.Registry
	metrics.RegisterGauge("batch_tasks_active", "Batches pending or running", func() float64 {
		active, _ := registry.Counts()
		return float64(active)
	})
	metrics.RegisterGauge("batch_tasks_retained", "Finished batches kept for progress reads", func() float64 {
		_, terminal := registry.Counts()
		return float64(terminal)
	})
	app.CaseService = cases.NewService(app.CaseRepo)
	app.AnalysisService = analysis.NewService(app.CaseService, app.LLM)
	app.Pool.SetResultSink(app.AnalysisService.History)
	history := app.AnalysisService.History
	metrics.RegisterGauge("analysis_history_entries", "Analyses kept in the results history", func() float64 {
		return float64(history.Len())
	})
	app.SessionService = sessions.NewService(app.SessionStore, app.LLM, app.Store)

	app.CaseHandler = cases.NewHandler(app.CaseService)
	app.BatchHandler = batch.NewHandler(app.Pool, app.AnalysisService)
	app.AnalysisHandler = analysis.NewHandler(app.AnalysisService)
	app.SessionHandler = sessions.NewHandler(app.SessionService)

	if app.CaseHandler == nil || app.BatchHandler == nil || app.AnalysisHandler == nil || app.SessionHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
