package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nekogravitycat/futsal-booking-flow/internal/api"
	"github.com/nekogravitycat/futsal-booking-flow/internal/auth"
	"github.com/nekogravitycat/futsal-booking-flow/internal/backend"
	"github.com/nekogravitycat/futsal-booking-flow/internal/booking"
	"github.com/nekogravitycat/futsal-booking-flow/internal/flow"
	flowHttp "github.com/nekogravitycat/futsal-booking-flow/internal/flow/http"
	"github.com/nekogravitycat/futsal-booking-flow/internal/pricing"
	"github.com/nekogravitycat/futsal-booking-flow/internal/slot"
	"github.com/nekogravitycat/futsal-booking-flow/internal/venue"
)

// devTokenTTL only applies to tokens minted by local tooling. Real tokens come from the backend.
const devTokenTTL = 30 * time.Minute

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	Logger       *zap.Logger
	Location     *time.Location

	// Exactly one draft store is used: DraftRepository if set, else Redis if set, else DBPool.
	DBPool          *pgxpool.Pool
	Redis           redis.Cmdable
	DraftRepository flow.Repository
	DraftTTL        time.Duration

	BackendBaseURL string
	BackendTimeout time.Duration
	JWTSecret      string

	ReleaseWorkers   int
	ReleaseQueueSize int
	RateLimitRPS     float64
	RateLimitBurst   int
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager
	Service    flow.Service

	releaser *flow.QueueReleaser
	janitor  *flow.Janitor
	log      *zap.Logger
}

// NewContainer initializes all modules and starts the background release workers.
func NewContainer(cfg Config) *Container {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// Init Components
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, devTokenTTL)
	backendClient := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout)

	// Backend Clients
	slotClient := slot.NewHTTPClient(backendClient)
	venueClient := venue.NewHTTPClient(backendClient)
	bookingClient := booking.NewHTTPClient(backendClient)
	pricingClient := pricing.NewHTTPClient(backendClient)

	// Draft Store
	var repo flow.Repository
	var locker flow.Locker
	var janitor *flow.Janitor
	switch {
	case cfg.DraftRepository != nil:
		repo = cfg.DraftRepository
	case cfg.Redis != nil:
		repo = flow.NewRedisRepository(cfg.Redis, cfg.DraftTTL)
		// Replicas share drafts through Redis, so they must share the per-draft lock too.
		// A transition makes a few sequential backend calls; the lock outlives them.
		locker = flow.NewRedisLocker(cfg.Redis, cfg.BackendTimeout*4, log)
	default:
		pgRepo := flow.NewPgxRepository(cfg.DBPool)
		repo = pgRepo
		janitor = flow.NewJanitor(pgRepo, log, cfg.DraftTTL, time.Hour)
	}

	// Flow Module
	releaser := flow.NewQueueReleaser(slotClient, log, cfg.ReleaseWorkers, cfg.ReleaseQueueSize, cfg.BackendTimeout)
	releaser.Start()

	flowService := flow.NewService(repo, slotClient, venueClient, bookingClient, pricingClient, releaser, log, flow.Config{
		Concurrency: cfg.ReleaseWorkers,
		Location:    cfg.Location,
		Locker:      locker,
	})

	// API Router Config
	routerParams := api.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		Logger:         log,
		JWTManager:     jwtManager,
		FlowHandler:    flowHttp.NewHandler(flowService),
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}

	// Router
	router := api.NewRouter(routerParams)

	return &Container{
		Router:     router,
		JWTManager: jwtManager,
		Service:    flowService,
		releaser:   releaser,
		janitor:    janitor,
		log:        log,
	}
}

// RunJanitor purges idle Postgres drafts until ctx is done. It returns at once for other stores.
func (c *Container) RunJanitor(ctx context.Context) {
	if c.janitor == nil {
		return
	}
	c.janitor.Run(ctx)
}

// Close drains pending slot releases.
func (c *Container) Close(ctx context.Context) {
	c.releaser.Stop(ctx)
}
