package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"bills-backend/internal/drafts"
	"bills-backend/internal/jobs"
	"bills-backend/internal/llm"
	openai "bills-backend/internal/llm/openai"
	"bills-backend/internal/match"
	"bills-backend/internal/oms"
	"bills-backend/internal/pages"
	"bills-backend/internal/pipeline"
	"bills-backend/internal/queue"
	"bills-backend/internal/render"
	"bills-backend/internal/session"
	"bills-backend/internal/shared/config"
	"bills-backend/internal/shared/server"
	"bills-backend/internal/shared/storage/db"
	"bills-backend/internal/shared/storage/object"
	localstore "bills-backend/internal/shared/storage/object/local"
	s3store "bills-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies for the API server and the worker.
type App struct {
	Config        config.Config
	Router        *gin.Engine
	DB            *sql.DB
	Store         object.ObjectStore
	Queue         queue.Client
	Sessions      session.Store
	LLM           llm.Client
	Orders        oms.Client
	JobsRepo      jobs.Repo
	PagesRepo     pages.Repo
	DraftsRepo    drafts.Repo
	JobsService   *jobs.Service
	DraftsService *drafts.Service
	Orchestrator  *pipeline.Orchestrator
	// JobProcessor allows callers to override job processing for tests.
	JobProcessor  JobProcessor
	JobsHandler   *jobs.Handler
	DraftsHandler *drafts.Handler
}

// JobProcessor runs one uploaded job through the page pipeline.
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

// Build prepares shared dependencies and wires the router.
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

	sessions, err := buildSessions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Store:    store,
		Queue:    queueClient,
		Sessions: sessions,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:        app.Config,
		JobsHandler:   app.JobsHandler,
		DraftsHandler: app.DraftsHandler,
	})

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

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
}

func buildSessions(ctx context.Context, cfg config.Config) (session.Store, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: REDIS_URL empty; using in-memory sessions")
			return session.NewMemoryStore(), nil
		}
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	store, err := session.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: redis connect failed; using in-memory sessions: %v", err)
			return session.NewMemoryStore(), nil
		}
		return nil, err
	}
	return store, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var jobsRepo jobs.Repo
	var pagesRepo pages.Repo
	var draftsRepo drafts.Repo

	if app.DB != nil {
		jobsRepo = &jobs.PGRepo{DB: app.DB}
		pagesRepo = &pages.PGRepo{DB: app.DB}
		draftsRepo = &drafts.PGRepo{DB: app.DB}
	} else {
		jobsRepo = jobs.NewMemoryRepo()
		pagesRepo = pages.NewMemoryRepo()
		draftsRepo = drafts.NewMemoryRepo()
	}

	llmClient := llm.Client(llm.PlaceholderClient{})
	if app.Config.LLMProvider == "openai" {
		openaiClient, err := openai.NewClient(os.Getenv("OPENAI_API_KEY"), app.Config.LLMModel)
		if err != nil {
			return err
		}
		llmClient = openaiClient
	}

	orders := oms.Client(oms.PlaceholderClient{})
	if strings.TrimSpace(app.Config.OMSBaseURL) != "" {
		httpOrders, err := oms.NewHTTPClient(
			app.Config.OMSBaseURL,
			app.Config.OMSAuthToken,
			app.Config.OMSTenantID,
			app.Config.OMSCompanySlug,
		)
		if err != nil {
			return err
		}
		orders = httpOrders
	} else if !isDevLike(app.Config.Env) {
		return fmt.Errorf("OMS_BASE_URL is required")
	} else {
		log.Printf("bootstrap: OMS_BASE_URL empty; order lookups disabled")
	}

	extractor := &pages.Extractor{
		LLM:   llmClient,
		Repo:  pagesRepo,
		Store: app.Store,
	}

	orchestrator := &pipeline.Orchestrator{
		Jobs:   jobsRepo,
		Pages:  extractor,
		Store:  app.Store,
		Render: render.NewPDFConverter(),
	}

	jobsSvc := &jobs.Service{
		Repo:      jobsRepo,
		Store:     app.Store,
		Queue:     app.Queue,
		Processor: orchestrator,
	}

	draftsSvc := &drafts.Service{
		Pages:   pagesRepo,
		Repo:    draftsRepo,
		Session: app.Sessions,
		Orders:  orders,
		Matcher: match.NewEngine(llmClient),
	}

	app.LLM = llmClient
	app.Orders = orders
	app.JobsRepo = jobsRepo
	app.PagesRepo = pagesRepo
	app.DraftsRepo = draftsRepo
	app.JobsService = jobsSvc
	app.DraftsService = draftsSvc
	app.Orchestrator = orchestrator
	app.JobProcessor = orchestrator
	app.JobsHandler = jobs.NewHandler(jobsSvc, pagesRepo, int64(app.Config.MaxUploadMB)<<20)
	app.DraftsHandler = drafts.NewHandler(draftsSvc)

	return nil
}
