package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/app"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/config"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/observability"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/shutdown"
)

var version = "dev"

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	root, c := newRootCmd()
	err := root.ExecuteContext(ctx)
	c.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "btgen: %v\n", err)
		os.Exit(1)
	}
}

// cli holds what every subcommand shares once the root has bootstrapped.
type cli struct {
	log          *logger.Logger
	cfg          *config.Config
	otelShutdown func(context.Context) error
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}
	root := &cobra.Command{
		Use:           "btgen",
		Short:         "Generate behavior trees from natural-language scenarios",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.bootstrap(cmd.Context())
		},
	}
	root.AddCommand(
		newServeCmd(c),
		newBatchCmd(c),
		newGenerateCmd(c),
		newIngestCmd(c),
		newVerifyAdapterCmd(c),
		newWorkerCmd(c),
		newRunsCmd(c),
	)
	return root, c
}

func (c *cli) bootstrap(ctx context.Context) error {
	_ = godotenv.Load()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Sync()
		return err
	}
	c.log = log
	c.cfg = cfg
	c.otelShutdown = observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "btgen",
		Environment: cfg.Env,
		Version:     version,
	})
	return nil
}

// close flushes tracing and logs. It is safe before bootstrap has run.
func (c *cli) close() {
	if c.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.otelShutdown(ctx); err != nil && c.log != nil {
			c.log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if c.log != nil {
		c.log.Sync()
	}
}

func (c *cli) app(ctx context.Context, opts app.Options) (*app.App, error) {
	return app.New(ctx, c.log, c.cfg, opts)
}
