package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/target/mmk-agent-api/config"
	"github.com/target/mmk-agent-api/internal/adapters/agent"
	"github.com/target/mmk-agent-api/internal/adapters/jobrunner"
	"github.com/target/mmk-agent-api/internal/core"
	"github.com/target/mmk-agent-api/internal/data"
	"github.com/target/mmk-agent-api/internal/observability/notify/slack"
	"github.com/target/mmk-agent-api/internal/observability/statsd"
	"github.com/target/mmk-agent-api/internal/service"
	"github.com/target/mmk-agent-api/internal/service/failurenotifier"
)

const metricsPrefix = "agent_api"

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Registry      *data.JobRegistry
	Runner        *jobrunner.Runner
	Jobs          *service.JobService
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config    *config.AppConfig
	Artifacts core.ArtifactStore
	// DB enables the job archive when non-nil.
	DB *sql.DB
	// Executor and Params default to the agent HTTP client and env-backed params.
	Executor core.Executor
	Params   core.AgentParamsSource
	Logger   *slog.Logger
}

func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  metricsPrefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
		NotifierConfig:  cfg.Notifications,
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{Logger: baseLogger})
	}

	var sinks []failurenotifier.SinkRegistration
	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:   cfg.Slack.WebhookURL,
			Channel:      cfg.Slack.Channel,
			Username:     cfg.Slack.Username,
			Timeout:      cfg.Timeout,
			RetryLimit:   cfg.RetryLimit,
			JobURLPrefix: cfg.Slack.JobURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if len(sinks) == 0 {
		baseLogger.Warn("failure notifications enabled but no sinks configured")
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger:  baseLogger,
		Sinks:   sinks,
		Timeout: cfg.Timeout,
	})
}

//nolint:ireturn // the executor port is what the runner consumes.
func newExecutor(cfg config.AgentConfig, logger *slog.Logger) (core.Executor, error) {
	client, err := agent.NewClient(agent.Options{
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
		ScreenshotExpr: cfg.ScreenshotExpr,
		AnimationExpr:  cfg.AnimationExpr,
		ResultExpr:     cfg.ResultExpr,
	})
	if err != nil {
		return nil, fmt.Errorf("build agent client: %w", err)
	}
	return client, nil
}

// NewServices wires the registry, execution bridge and job service.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps missing AppConfig")
	}
	if deps.Artifacts == nil {
		return ServiceContainer{}, errors.New("service deps missing ArtifactStore")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	executor := deps.Executor
	if executor == nil {
		var err error
		if executor, err = newExecutor(cfg.Agent, logger); err != nil {
			return ServiceContainer{}, err
		}
	}
	params := deps.Params
	if params == nil {
		params = agent.EnvParams{}
	}

	var archive core.JobArchive
	if deps.DB != nil {
		archive = data.NewJobArchiveRepo(deps.DB)
	}

	observability := buildObservability(logger, cfg.Observability)
	registry := data.NewJobRegistry(data.JobRegistryOptions{})

	runnerOpts := jobrunner.RunnerOptions{
		Registry:        registry,
		Executor:        executor,
		Artifacts:       deps.Artifacts,
		Params:          params,
		Archive:         archive,
		Logger:          logger,
		FailureNotifier: observability.FailureNotifier,
		Concurrency:     cfg.Runner.Concurrency,
		QueueSize:       cfg.Runner.QueueSize,
		JobTimeout:      cfg.Runner.JobTimeout,
	}
	if observability.MetricsSink != nil {
		runnerOpts.Metrics = observability.MetricsSink
	}
	runner, err := jobrunner.NewRunner(runnerOpts)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build job runner: %w", err)
	}

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Registry:   registry,
		Dispatcher: runner,
		Artifacts:  deps.Artifacts,
		Archive:    archive,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build job service: %w", err)
	}

	return ServiceContainer{
		Registry:      registry,
		Runner:        runner,
		Jobs:          jobs,
		Observability: observability,
	}, nil
}

// ServiceOrchestrationConfig contains dependencies for running the service until shutdown.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts the runner and HTTP server, then blocks until
// SIGINT/SIGTERM or a server failure and shuts both down in order.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	if cfg.Services.Runner == nil || cfg.Services.Jobs == nil {
		return errors.New("service orchestration config missing services")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	cfg.Services.Runner.Start(ctx)
	server := StartHTTPServer(&HTTPServerConfig{
		Config:     cfg.Config.HTTP,
		JobService: cfg.Services.Jobs,
		Logger:     logger,
		ErrCh:      errCh,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	return waitForShutdown(shutdownConfig{
		ctx:             ctx,
		cancel:          cancel,
		logger:          logger,
		quit:            quit,
		errCh:           errCh,
		httpServer:      server,
		runner:          cfg.Services.Runner,
		shutdownTimeout: cfg.Config.Runner.ShutdownTimeout,
		metrics:         cfg.Services.Observability.MetricsSink,
	})
}

type shutdownConfig struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          *slog.Logger
	quit            <-chan os.Signal
	errCh           <-chan error
	httpServer      *http.Server
	runner          *jobrunner.Runner
	shutdownTimeout time.Duration
	metrics         *statsd.Client
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	select {
	case sig := <-cfg.quit:
		cfg.logger.Info("shutting down services...", "signal", sig.String())
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop stops intake first, then lets the runner drain within the shutdown timeout.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.cancel != nil {
		defer cfg.cancel()
	}

	var errs []error
	if err := ShutdownHTTPServer(ShutdownConfig{
		Context: cfg.ctx,
		Server:  cfg.httpServer,
		Logger:  cfg.logger,
	}); err != nil {
		errs = append(errs, err)
	}

	if cfg.runner != nil {
		stats := cfg.runner.Stats()
		cfg.logger.Info("stopping job runner", "queued", stats.Queued, "running", stats.Running)

		runnerCtx, cancel := context.WithTimeout(cfg.ctx, cfg.shutdownTimeout)
		defer cancel()
		if err := cfg.runner.Shutdown(runnerCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown job runner: %w", err))
		}
	}

	if cfg.metrics != nil {
		if err := cfg.metrics.Close(); err != nil {
			cfg.logger.Warn("close statsd client", "error", err)
		}
	}

	return errors.Join(errs...)
}
