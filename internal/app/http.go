package app

import (
	"context"
	"fmt"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/generation"
	api "github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/http"
	httpH "github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/http/handlers"
	httpMW "github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/http/middleware"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/envutil"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/temporalx/scenariobatch"
)

// HTTPServer wires the handlers onto a server bound to the configured address.
func (a *App) HTTPServer() (*api.Server, error) {
	cfg := a.Cfg

	var starter httpH.BatchStarter
	if a.Temporal != nil {
		s, err := scenariobatch.NewStarter(a.Temporal, a.TemporalCfg.TaskQueue)
		if err != nil {
			return nil, fmt.Errorf("init batch starter: %w", err)
		}
		starter = s
	}

	var runs httpH.RunLister
	if a.Runs != nil {
		runs = a.Runs
	}

	rc := api.RouterConfig{
		Log:              a.Log,
		Metrics:          a.Metrics,
		ServiceName:      envutil.String("OTEL_SERVICE_NAME", "btgen"),
		CORSAllowOrigins: cfg.HTTP.CORSAllowOrigins,
		MaxRequestBytes:  cfg.HTTP.MaxRequestBytes,
		AuthMiddleware:   httpMW.NewAuthMiddleware(a.Log, cfg.HTTP.JWTSecret),

		HealthHandler:    httpH.NewHealthHandler(a.readinessChecks()...),
		GenerateHandler:  httpH.NewGenerateHandler(a.Log, a.Pipeline),
		ScenariosHandler: httpH.NewScenariosHandler(a.Log, a.Pipeline, starter),
		AdapterHandler: httpH.NewAdapterHandler(a.Generator, generation.DecodingConfig{
			MaxNewTokens: cfg.Decoding.MaxNewTokens,
			Temperature:  cfg.Decoding.Temperature,
			TopP:         cfg.Decoding.TopP,
		}),
		RunsHandler: httpH.NewRunsHandler(runs),
	}
	return api.NewServer(a.Log, cfg.HTTP, rc), nil
}

func (a *App) readinessChecks() []httpH.ReadinessCheck {
	checks := []httpH.ReadinessCheck{{
		Name: "engine",
		Check: func(ctx context.Context) error {
			if a.Generator == nil {
				return fmt.Errorf("generator not configured")
			}
			return nil
		},
	}}
	if a.vectors != nil && a.vectors.ready != nil {
		checks = append(checks, httpH.ReadinessCheck{Name: "vector_index", Check: a.vectors.ready})
	}
	return checks
}
