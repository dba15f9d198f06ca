package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/your-org/authgate/internal/config"
	"github.com/your-org/authgate/internal/service/routes"
	"github.com/your-org/authgate/internal/service/token"
	httpTransport "github.com/your-org/authgate/internal/transport/http"
	"github.com/your-org/authgate/pkg/logger"
	"github.com/your-org/authgate/pkg/resilience/ratelimit"
	"github.com/your-org/authgate/pkg/tracing"
)

var (
	// Version is set during build
	Version = "dev"
	// BuildTime is set during build
	BuildTime = "unknown"
	// GitCommit is set during build
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("authgate %s\n", Version)
		fmt.Printf("Build time: %s\n", BuildTime)
		fmt.Printf("Git commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting authgate",
		logger.String("version", Version),
		logger.String("commit", GitCommit),
		logger.String("environment", cfg.Env.Name),
	)

	if cfg.Env.NonProduction {
		logger.Warn("non-production marker set, request-time auth bypass is available")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := initializeApp(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize application", logger.Err(err))
	}

	go func() {
		if err := app.httpServer.Start(); err != nil {
			logger.Fatal("http server failed", logger.Err(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", logger.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", logger.Err(err))
	}

	logger.Info("authgate stopped")
}

// App holds the running application components.
type App struct {
	httpServer      *httpTransport.Server
	routeWatcher    *routes.Watcher
	tracingProvider *tracing.Provider
}

// initializeApp wires the route table, token service, and HTTP server.
func initializeApp(ctx context.Context, cfg *config.Config) (*App, error) {
	table := routes.NewTable(cfg.Routes.PublicExact, cfg.Routes.PublicPrefixes)

	app := &App{}

	if cfg.Routes.File != "" {
		if err := routes.LoadFile(cfg.Routes.File, table); err != nil {
			return nil, fmt.Errorf("failed to load route table: %w", err)
		}
		if cfg.Routes.Watch {
			watcher, err := routes.NewWatcher(ctx, cfg.Routes.File, table)
			if err != nil {
				return nil, fmt.Errorf("failed to watch route table: %w", err)
			}
			app.routeWatcher = watcher
		}
	}

	tokenService := token.NewService(cfg.Auth)
	if !tokenService.Policy().Configured() {
		logger.Warn("no JWKS URL configured, all protected requests will be rejected")
	}

	var opts []httpTransport.ServerOption

	if cfg.Tracing.Enabled {
		tracingCfg := cfg.Tracing
		if tracingCfg.ServiceVersion == "" {
			tracingCfg.ServiceVersion = Version
		}
		provider, err := tracing.NewProvider(ctx, tracingCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		app.tracingProvider = provider
		opts = append(opts, httpTransport.WithTracing(provider))
		logger.Info("tracing initialized",
			logger.String("endpoint", cfg.Tracing.Endpoint),
			logger.Float64("sample_rate", tracingCfg.SampleRate),
		)
	}

	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.NewLimiter(cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		opts = append(opts, httpTransport.WithRateLimiter(limiter))
	}

	app.httpServer = httpTransport.NewServer(cfg, table, tokenService, Version, opts...)
	return app, nil
}

// Shutdown stops the application components.
func (a *App) Shutdown(ctx context.Context) error {
	if a.routeWatcher != nil {
		if err := a.routeWatcher.Close(); err != nil {
			logger.Warn("failed to stop route watcher", logger.Err(err))
		}
	}
	if err := a.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if a.tracingProvider != nil {
		// Flush any buffered spans before exiting.
		if err := a.tracingProvider.Shutdown(ctx); err != nil {
			logger.Warn("failed to stop tracing provider", logger.Err(err))
		}
	}
	return nil
}
