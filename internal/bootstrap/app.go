package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	redislib "github.com/redis/go-redis/v9"

	"veriglow-backend/internal/admin"
	"veriglow-backend/internal/analyses"
	"veriglow-backend/internal/audit"
	"veriglow-backend/internal/auth"
	"veriglow-backend/internal/billing"
	"veriglow-backend/internal/cache"
	"veriglow-backend/internal/chat"
	"veriglow-backend/internal/classifier"
	"veriglow-backend/internal/classifier/modelserver"
	"veriglow-backend/internal/compliance"
	"veriglow-backend/internal/factcheck"
	"veriglow-backend/internal/queue"
	"veriglow-backend/internal/scraper"
	"veriglow-backend/internal/search"
	"veriglow-backend/internal/services/health"
	"veriglow-backend/internal/shared/config"
	"veriglow-backend/internal/shared/server"
	"veriglow-backend/internal/shared/server/middleware"
	"veriglow-backend/internal/shared/storage/db"
	"veriglow-backend/internal/shared/storage/object"
	localstore "veriglow-backend/internal/shared/storage/object/local"
	s3store "veriglow-backend/internal/shared/storage/object/s3"
	sharedredis "veriglow-backend/internal/shared/storage/redis"
	"veriglow-backend/internal/tasks"
	"veriglow-backend/internal/translate"
	"veriglow-backend/internal/usage"
	"veriglow-backend/internal/users"
	"veriglow-backend/internal/webhooks"
)

// App holds shared dependencies for the API and worker processes.
type App struct {
	Config config.Config
	Router *gin.Engine

	DB    *sql.DB
	Redis *redislib.Client
	Store object.ObjectStore
	Queue queue.Client
	Model *modelserver.Client

	UsersRepo    users.Repo
	AnalysesRepo analyses.Repo
	TasksRepo    tasks.Repo
	BillingRepo  billing.Repo
	WebhooksRepo webhooks.Repo
	FlagsRepo    admin.FlagRepo
	TrackerRepo  classifier.TrackerRepo

	UsersService      *users.Service
	AuthService       *auth.Service
	GoogleAuth        *auth.GoogleService
	UsageService      *usage.Service
	AuditService      *audit.Service
	AnalysesService   *analyses.Service
	TasksService      *tasks.Service
	BillingService    *billing.Service
	ChatService       *chat.Service
	WebhooksService   *webhooks.Service
	ComplianceService *compliance.Service
	AdminService      *admin.Service
	HealthService     *health.Service

	Tracker  *classifier.Tracker
	Failover *classifier.Failover

	AuthHandler       *auth.Handler
	UsersHandler      *users.Handler
	AnalysesHandler   *analyses.Handler
	TasksHandler      *tasks.Handler
	UsageHandler      *usage.Handler
	BillingHandler    *billing.Handler
	ChatHandler       *chat.Handler
	WebhooksHandler   *webhooks.Handler
	ComplianceHandler *compliance.Handler
	AdminHandler      *admin.Handler
}

// Build prepares every dependency and returns the wired App. Missing
// infrastructure degrades in development: no database means in-memory
// repositories, no redis means in-process cache, limiter, and revocations,
// no queue means inline task execution.
func Build(cfg config.Config) (*App, error) {
	return build(cfg, db.DefaultServerOptions())
}

// BuildWorker is Build with the worker's smaller database pool.
func BuildWorker(cfg config.Config) (*App, error) {
	return build(cfg, db.DefaultWorkerOptions())
}

func build(cfg config.Config, dbDefaults db.Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg, dbDefaults)
	if err != nil {
		return nil, err
	}

	redisClient := buildRedis(ctx, cfg)

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg, redisClient)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Redis:  redisClient,
		Store:  store,
		Queue:  queueClient,
	}

	buildServices(app)

	app.Router = server.NewRouter(cfg, server.RouterDeps{
		Auth:        app.AuthHandler,
		GoogleAuth:  app.GoogleAuth,
		Users:       app.UsersHandler,
		Analyses:    app.AnalysesHandler,
		Tasks:       app.TasksHandler,
		Usage:       app.UsageHandler,
		Billing:     app.BillingHandler,
		Chat:        app.ChatHandler,
		Webhooks:    app.WebhooksHandler,
		Compliance:  app.ComplianceHandler,
		Admin:       app.AdminHandler,
		Health:      app.HealthService,
		RateLimiter: buildLimiter(redisClient),
	})

	return app, nil
}

// Close releases pooled connections. Safe to call on a partially built App.
func (a *App) Close() {
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Printf("bootstrap: close database: %v", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Printf("bootstrap: close redis: %v", err)
		}
	}
}

func buildDB(ctx context.Context, cfg config.Config, defaults db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(defaults)
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return sqlDB, nil
}

// buildRedis returns nil when redis is unconfigured or unreachable. Every
// consumer has an in-process fallback, so a redis outage costs shared state
// across instances rather than availability.
func buildRedis(ctx context.Context, cfg config.Config) *redislib.Client {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil
	}
	client, err := sharedredis.Connect(ctx, cfg.RedisURL, sharedredis.DefaultOptions())
	if err != nil {
		log.Printf("bootstrap: redis connect failed; using in-process fallbacks: %v", err)
		return nil
	}
	return client
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config, redisClient *redislib.Client) (queue.Client, error) {
	switch cfg.QueueBackend {
	case "sqs":
		return queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("QUEUE_BACKEND=redis requires a reachable REDIS_URL")
		}
		return queue.NewRedisClient(redisClient, cfg.RedisQueueKey)
	default:
		// Inline execution inside the API process.
		return nil, nil
	}
}

func buildLimiter(redisClient *redislib.Client) middleware.Limiter {
	if redisClient != nil {
		return middleware.NewRedisLimiter(redisClient)
	}
	return middleware.NewMemoryLimiter(nil)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) {
	cfg := app.Config

	if app.DB != nil {
		app.UsersRepo = &users.PGRepo{DB: app.DB}
		app.AnalysesRepo = &analyses.PGRepo{DB: app.DB}
		app.TasksRepo = &tasks.PGRepo{DB: app.DB}
		app.BillingRepo = &billing.PGRepo{DB: app.DB}
		app.WebhooksRepo = &webhooks.PGRepo{DB: app.DB}
		app.FlagsRepo = &admin.PGFlagRepo{DB: app.DB}
		app.TrackerRepo = &classifier.PGTrackerRepo{DB: app.DB}
		app.UsageService = usage.NewPostgresService(usage.NewPGStore(app.DB))
		app.AuditService = audit.NewService(audit.NewPGRepo(app.DB))
	} else {
		app.UsersRepo = users.NewMemoryRepo()
		app.AnalysesRepo = analyses.NewMemoryRepo()
		app.TasksRepo = tasks.NewMemoryRepo()
		app.BillingRepo = billing.NewMemoryRepo()
		app.WebhooksRepo = webhooks.NewMemoryRepo()
		app.FlagsRepo = admin.NewMemoryFlagRepo()
		app.TrackerRepo = classifier.NewMemoryTrackerRepo()
		app.UsageService = usage.NewService()
		app.AuditService = audit.NewService(audit.NewMemoryRepo())
	}

	app.UsersService = users.NewService(app.UsersRepo, users.LockoutPolicy{
		MaxAttempts: cfg.LockoutMaxAttempts,
		Window:      cfg.LockoutWindow,
		Duration:    cfg.LockoutDuration,
	})

	var revocations auth.RevocationStore
	if app.Redis != nil {
		revocations = &auth.RedisRevocations{Client: app.Redis}
	} else {
		revocations = auth.NewMemoryRevocations()
	}
	app.AuthService = auth.NewService(app.UsersService, revocations, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	app.GoogleAuth = auth.NewGoogleService(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
		cfg.UIRedirectURL,
		app.UsersService,
		app.AuthService,
	)

	app.WebhooksService = webhooks.NewService(app.WebhooksRepo)

	app.Model = modelserver.NewClient(cfg.ModelServerURL, cfg.ModelName, "", cfg.ModelTimeout)
	app.Tracker = &classifier.Tracker{Repo: app.TrackerRepo}
	app.Failover = classifier.NewFailover(
		classifier.Backend{Name: "model-server", Classifier: app.Model},
		classifier.Backend{Name: "heuristic", Classifier: classifier.Heuristic{}},
	)

	analysesSvc := analyses.NewService(app.AnalysesRepo)
	analysesSvc.Users = app.UsersService
	analysesSvc.Model = app.Failover
	analysesSvc.Router = buildABRouter(cfg, app.Failover)
	analysesSvc.Tracker = app.Tracker
	analysesSvc.Scraper = scraper.New()
	analysesSvc.Usage = app.UsageService
	analysesSvc.Audit = app.AuditService
	analysesSvc.Events = app.WebhooksService
	if app.Redis != nil {
		analysesSvc.Cache = cache.NewRedis(app.Redis)
	} else {
		analysesSvc.Cache = cache.NewMemory()
	}
	if cfg.TranslateURL != "" {
		analysesSvc.Translator = translate.NewClient(cfg.TranslateURL, nil)
	}
	if cfg.FactCheckAPIKey != "" {
		checker := factcheck.NewClient(cfg.FactCheckAPIKey, nil)
		if cfg.FactCheckURL != "" {
			checker.Endpoint = cfg.FactCheckURL
		}
		analysesSvc.FactCheck = checker
	}
	if cfg.SearchURL != "" {
		analysesSvc.Search = search.NewClient(cfg.SearchURL, nil)
	}
	app.AnalysesService = analysesSvc

	tasksSvc := tasks.NewService(app.TasksRepo, analysesSvc)
	tasksSvc.Queue = app.Queue
	tasksSvc.Notifier = app.WebhooksService
	tasksSvc.Events = app.WebhooksService
	app.TasksService = tasksSvc

	provider := billing.NewStripeClient(cfg.BillingAPIKey, nil)
	if cfg.BillingURL != "" {
		provider.BaseURL = cfg.BillingURL
	}
	app.BillingService = billing.NewService(app.BillingRepo, provider, app.UsersService, app.UsageService, app.AuditService)

	var news *chat.NewsClient
	if cfg.NewsAPIKey != "" {
		news = chat.NewNewsClient(cfg.NewsAPIKey, nil)
	}
	app.ChatService = chat.NewService(chat.NewOllamaClient(cfg.ModelServerURL, cfg.ChatModel), news)

	complianceSvc := compliance.NewService(app.UsersService, analysesSvc)
	complianceSvc.Billing = app.BillingService
	complianceSvc.Usage = app.UsageService
	complianceSvc.Webhooks = app.WebhooksService
	complianceSvc.Store = app.Store
	complianceSvc.Audit = app.AuditService
	if cfg.RetentionDays > 0 {
		complianceSvc.RetentionDays = cfg.RetentionDays
	}
	app.ComplianceService = complianceSvc

	adminSvc := admin.NewService(app.UsersService, analysesSvc, app.FlagsRepo)
	adminSvc.Audit = app.AuditService
	adminSvc.Tracker = app.Tracker
	adminSvc.Failover = app.Failover
	app.AdminService = adminSvc

	healthSvc := health.NewService()
	healthSvc.DB = app.DB
	healthSvc.Redis = app.Redis
	healthSvc.Model = app.Model
	app.HealthService = healthSvc

	app.AuthHandler = auth.NewHandler(app.AuthService, app.UsersService)
	app.UsersHandler = users.NewHandler(app.UsersService)
	app.AnalysesHandler = analyses.NewHandler(analysesSvc)
	app.AnalysesHandler.Objects = app.Store
	app.TasksHandler = tasks.NewHandler(tasksSvc)
	app.UsageHandler = usage.NewHandler(app.UsageService)
	app.BillingHandler = billing.NewHandler(app.BillingService, cfg.BillingWebhookSecret)
	app.ChatHandler = chat.NewHandler(app.ChatService)
	app.WebhooksHandler = webhooks.NewHandler(app.WebhooksService)
	app.ComplianceHandler = compliance.NewHandler(complianceSvc)
	app.AdminHandler = admin.NewHandler(adminSvc)
}

// buildABRouter reads the experiment knobs straight from the environment;
// they change per rollout, not per deployment, so they stay out of Config.
// MODEL_AB_TEST_ID names the test and MODEL_AB_MODEL_B the challenger model.
// MODEL_AB_SPLIT is the share of traffic kept on the primary (default 0.9).
func buildABRouter(cfg config.Config, primary *classifier.Failover) *classifier.Router {
	testID := strings.TrimSpace(os.Getenv("MODEL_AB_TEST_ID"))
	challengerModel := strings.TrimSpace(os.Getenv("MODEL_AB_MODEL_B"))
	if testID == "" || challengerModel == "" {
		return nil
	}

	split := 0.9
	if raw := strings.TrimSpace(os.Getenv("MODEL_AB_SPLIT")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 || parsed >= 1 {
			log.Printf("bootstrap: ignoring invalid MODEL_AB_SPLIT %q", raw)
		} else {
			split = parsed
		}
	}

	challenger := classifier.NewFailover(
		classifier.Backend{
			Name:       "model-server-b",
			Classifier: modelserver.NewClient(cfg.ModelServerURL, challengerModel, "", cfg.ModelTimeout),
		},
		classifier.Backend{Name: "heuristic", Classifier: classifier.Heuristic{}},
	)

	return classifier.NewRouter(testID, split,
		classifier.Backend{Name: cfg.ModelName, Classifier: primary},
		classifier.Backend{Name: challengerModel, Classifier: challenger},
	)
}
