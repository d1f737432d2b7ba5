package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iscc/iscc-hub/internal/logger"
	"github.com/iscc/iscc-hub/internal/telemetry"
	"github.com/iscc/iscc-hub/pkg/archive"
	"github.com/iscc/iscc-hub/pkg/config"
	"github.com/iscc/iscc-hub/pkg/hubapi"
	"github.com/iscc/iscc-hub/pkg/hubidentity"
	"github.com/iscc/iscc-hub/pkg/ingress"
	"github.com/iscc/iscc-hub/pkg/metrics"
	// Registers the Prometheus-backed metrics constructors on import.
	_ "github.com/iscc/iscc-hub/pkg/metrics/prometheus"
	"github.com/iscc/iscc-hub/pkg/note"
	"github.com/iscc/iscc-hub/pkg/sequencer"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ISCC HUB server",
	Long: `Start the ISCC HUB server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/iscchub/config.yaml.

Examples:
  # Start with default config
  iscchubd start

  # Start with a custom config file
  iscchubd start --config /etc/iscc-hub/config.yaml

  # Start with environment variable overrides
  ISCCHUB_LOGGING_LEVEL=DEBUG iscchubd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "iscc-hub",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "iscc-hub",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))
	logger.Info("server identity", "server_id", cfg.ServerID, "domain", cfg.Domain)

	seckeyHex, err := readSeckey(cfg.Seckey)
	if err != nil {
		return fmt.Errorf("failed to read signing key: %w", err)
	}
	identity, err := hubidentity.Load(seckeyHex, cfg.Domain)
	if err != nil {
		return fmt.Errorf("failed to load hub identity: %w", err)
	}
	logger.Info("hub identity loaded", "controller", identity.ControllerID(), "keyid", identity.KeyID())

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metrics.Handler(),
		}
		go func() {
			logger.Info("metrics server listening", "port", cfg.Metrics.Port)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	} else {
		logger.Info("metrics disabled")
	}

	store, err := config.CreateEventStore(ctx, cfg.Store, logger.With())
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("event store close error", "error", err)
		}
	}()
	logger.Info("event store opened", "engine", cfg.Store.Engine)

	if cfg.Archive.Enabled {
		archiveWorker, err := archive.NewFromConfig(ctx, store, archive.Config{
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			Prefix:    cfg.Archive.Prefix,
			Endpoint:  cfg.Archive.Endpoint,
			Interval:  cfg.Archive.Interval,
			BatchSize: cfg.Archive.BatchSize,
			Logger:    logger.With(),
		})
		if err != nil {
			return fmt.Errorf("failed to initialize archive worker: %w", err)
		}
		archiveWorker.Start(ctx)
		defer archiveWorker.Stop(cfg.ShutdownTimeout)
		logger.Info("archive export enabled", "bucket", cfg.Archive.Bucket, "interval", cfg.Archive.Interval)
	}

	seq := sequencer.New(store, sequencer.Config{
		ServerID:  cfg.ServerID,
		QueueSize: cfg.API.WriterQueueSize,
		Logger:    logger.With(),
		Metrics:   metrics.NewWriterLaneMetrics(),
	})
	seq.Start()

	ig := ingress.New(ingress.Config{
		Store:     store,
		Sequencer: seq,
		Identity:  identity,
		Validation: note.ValidationConfig{
			ServerID:    cfg.ServerID,
			SkewSeconds: cfg.SkewSeconds,
		},
		Metrics: metrics.NewDeclarationMetrics(),
	})

	apiServer := hubapi.NewServer(hubapi.Config{
		Port:              cfg.API.Port,
		ReadTimeout:       cfg.API.ReadTimeout,
		WriteTimeout:      cfg.API.WriteTimeout,
		IdleTimeout:       cfg.API.IdleTimeout,
		MaxEventsPageSize: cfg.API.MaxEventsPageSize,
	}, ig, store)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	logger.Info("iscc hub is running", "port", apiServer.Port())

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, draining writer lane")
		cancel()
		seq.Stop(cfg.ShutdownTimeout)
		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		logger.Info("iscc hub stopped gracefully")
	case err := <-serverDone:
		signal.Stop(sigChan)
		cancel()
		seq.Stop(cfg.ShutdownTimeout)
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
	}

	return nil
}

// readSeckey loads the hex-encoded Ed25519 private key from path, the way
// the teacher's InitConfig-generated files are plain secrets on disk rather
// than embedded in the YAML config itself.
func readSeckey(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
