package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tuning-backend/internal/analysis"
	"tuning-backend/internal/applier"
	"tuning-backend/internal/feedback"
	"tuning-backend/internal/imports"
	"tuning-backend/internal/proposals"
	"tuning-backend/internal/queue"
	"tuning-backend/internal/services/health"
	"tuning-backend/internal/settings"
	"tuning-backend/internal/shared/config"
	"tuning-backend/internal/shared/metrics"
	"tuning-backend/internal/shared/server"
	"tuning-backend/internal/shared/storage/db"
	"tuning-backend/internal/shared/storage/object"
	localstore "tuning-backend/internal/shared/storage/object/local"
	s3store "tuning-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies for the API server and the worker.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	Queue    queue.Client
	Registry *prometheus.Registry

	Feedback  *feedback.Service
	Imports   *imports.Service
	Proposals *proposals.Service
	Review    *proposals.Review
	Applier   *applier.Service
	Analysis  *analysis.Service
	Settings  settings.Reader
}

type repos struct {
	feedback  feedback.Repo
	imports   imports.Repo
	proposals proposals.Repo
	settings  settings.Reader
	uow       applier.UnitOfWork
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(registry); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Store:    store,
		Queue:    queueClient,
		Registry: registry,
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// buildQueue returns nil when no queue is configured; imports then skip publishing.
func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.ImportQueueURL) == "" {
		return nil, nil
	}
	client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.ImportQueueURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func buildRepos(sqlDB *sql.DB) repos {
	if sqlDB != nil {
		return repos{
			feedback:  &feedback.PGRepo{DB: sqlDB},
			imports:   &imports.PGRepo{DB: sqlDB},
			proposals: &proposals.PGRepo{DB: sqlDB},
			settings:  &settings.PGStore{DB: sqlDB},
			uow:       &applier.PGUnitOfWork{DB: sqlDB},
		}
	}
	fb := feedback.NewMemoryStore()
	props := proposals.NewMemoryRepo()
	st := settings.NewMemoryStore()
	return repos{
		feedback:  fb,
		imports:   imports.NewMemoryRepo(fb),
		proposals: props,
		settings:  st,
		uow:       applier.NewMemoryUnitOfWork(props, st),
	}
}

func buildAnalyzer(cfg config.Config) (analysis.Analyzer, error) {
	if strings.TrimSpace(cfg.AnalyzerURL) == "" {
		log.Printf("bootstrap: ANALYZER_URL empty; analysis runs will fail with analyzer_error")
		return analysis.PlaceholderAnalyzer{}, nil
	}
	return analysis.NewHTTPAnalyzer(cfg.AnalyzerURL, cfg.AnalyzerTimeout)
}

func buildServices(app *App) error {
	r := buildRepos(app.DB)

	analyzer, err := buildAnalyzer(app.Config)
	if err != nil {
		return err
	}

	feedbackSvc := &feedback.Service{Repo: r.feedback}
	proposalSvc := &proposals.Service{Repo: r.proposals}
	applierSvc := &applier.Service{UoW: r.uow}
	review := &proposals.Review{Svc: proposalSvc, Applier: applierSvc}
	importSvc := &imports.Service{
		Repo:             r.imports,
		Store:            app.Store,
		Publisher:        app.Queue,
		MaxBytes:         app.Config.ImportMaxBytes,
		DefaultProfileID: app.Config.DefaultProfileID,
	}
	analysisSvc := analysis.NewService(feedbackSvc, proposalSvc, analyzer, app.Config.AnalyzerTimeout)

	app.Feedback = feedbackSvc
	app.Imports = importSvc
	app.Proposals = proposalSvc
	app.Review = review
	app.Applier = applierSvc
	app.Analysis = analysisSvc
	app.Settings = r.settings

	var pinger health.Pinger
	if app.DB != nil {
		pinger = app.DB
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		ImportHandler:   imports.NewHandler(importSvc),
		AnalysisHandler: analysis.NewHandler(analysisSvc, app.Config.DefaultProfileID),
		ProposalHandler: proposals.NewHandler(proposalSvc, review, r.settings),
		FeedbackHandler: feedback.NewHandler(feedbackSvc),
		SettingsHandler: settings.NewHandler(r.settings),
		Health:          health.NewService(pinger),
		Gatherer:        app.Registry,
	})
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
