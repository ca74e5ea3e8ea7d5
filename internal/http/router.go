package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/http/handlers"
	httpMW "github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/http/middleware"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/observability"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

type RouterConfig struct {
	Log              *logger.Logger
	Metrics          *observability.Metrics
	ServiceName      string
	CORSAllowOrigins []string
	MaxRequestBytes  int64
	AuthMiddleware   *httpMW.AuthMiddleware

	HealthHandler    *httpH.HealthHandler
	GenerateHandler  *httpH.GenerateHandler
	ScenariosHandler *httpH.ScenariosHandler
	AdapterHandler   *httpH.AdapterHandler
	RunsHandler      *httpH.RunsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSAllowOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.ReadyCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	v1 := r.Group("/v1")
	v1.Use(httpMW.MaxBodyBytes(cfg.MaxRequestBytes))
	v1.Use(cfg.AuthMiddleware.RequireAuth())
	{
		if cfg.GenerateHandler != nil {
			v1.POST("/generate", cfg.GenerateHandler.Generate)
		}
		if cfg.ScenariosHandler != nil {
			v1.POST("/scenarios", cfg.ScenariosHandler.Generate)
		}
		if cfg.AdapterHandler != nil {
			v1.POST("/adapter/compare", cfg.AdapterHandler.Compare)
		}
		if cfg.RunsHandler != nil {
			v1.GET("/runs", cfg.RunsHandler.List)
		}
	}

	return r
}
