package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nekogravitycat/futsal-booking-flow/internal/auth"
	flowHttp "github.com/nekogravitycat/futsal-booking-flow/internal/flow/http"
	"github.com/nekogravitycat/futsal-booking-flow/internal/telemetry"
)

// Config holds what the router needs to assemble middleware and routes.
type Config struct {
	IsProduction   bool
	ProdOrigins    string
	Logger         *zap.Logger
	JWTManager     *auth.JWTManager
	FlowHandler    *flowHttp.FlowHandler
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (request id, logging, tracing, CORS, auth, rate limiting) and registering routes.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global Middleware:
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(RequestID(), RequestLogger(cfg.Logger), gin.Recovery(), telemetry.TracingMiddleware())

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	if cfg.IsProduction {
		corsConfig.AllowOrigins = splitOrigins(cfg.ProdOrigins)
	} else {
		corsConfig.AllowOrigins = []string{
			"http://localhost:3000", // Next.js dev server
			"http://localhost:5173", // Vite dev server
		}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", flowHttp.SessionHeader, RequestIDHeader}
	corsConfig.ExposeHeaders = []string{RequestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	// limiter runs after auth so that buckets are per user.
	limiter := RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		flowHttp.RegisterRoutes(v1, cfg.FlowHandler, authMiddleware, limiter)
	}

	return r
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
