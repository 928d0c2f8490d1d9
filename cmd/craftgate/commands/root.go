package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/craftgate/craftgate/internal/config"
	"github.com/craftgate/craftgate/internal/gate"
	gatemetrics "github.com/craftgate/craftgate/internal/metrics"
	"github.com/craftgate/craftgate/internal/mojang"
	appversion "github.com/craftgate/craftgate/internal/version"
)

// shutdownTimeout is the maximum time to wait for the metrics HTTP
// server to drain during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// configPath is the --config flag value.
var configPath string

// rootCmd runs the gate daemon.
var rootCmd = &cobra.Command{
	Use:   "craftgate",
	Short: "Minecraft Java Edition login gate (protocol 578)",
	Long: "craftgate accepts Minecraft 1.15.2 clients, serves status queries,\n" +
		"performs the encrypted login handshake against the Mojang session\n" +
		"authority, and joins authenticated players into an empty world.",
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return run(configPath)
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to configuration file (YAML)")
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		// Logger is not set up yet; use a temporary stderr logger.
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return err
	}

	logger := newLogger(cfg.Log)

	logger.Info("craftgate starting",
		slog.String("version", appversion.Version),
		slog.String("listen_addr", cfg.Listen.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := gatemetrics.NewCollector(reg)

	// One key pair per process start; shared read-only by every
	// connection.
	key, err := gate.GenerateServerKey()
	if err != nil {
		logger.Error("failed to generate server key", slog.String("error", err.Error()))
		return err
	}

	auth := mojang.NewClient(cfg.Auth.SessionServer, cfg.Auth.Timeout)

	listener := gate.NewListener(cfg.Listen.Addr, key, auth, gate.Options{
		Status:      cfg.Status,
		Game:        cfg.Game,
		ReadTimeout: cfg.Listen.ReadTimeout,
	}, logger, collector)

	if err := serve(cfg, listener, reg, logger); err != nil {
		logger.Error("craftgate exited with error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("craftgate stopped")
	return nil
}

// serve runs the game listener and the metrics HTTP server under an
// errgroup with a signal-aware context for graceful shutdown.
func serve(cfg *config.Config, listener *gate.Listener, reg *prometheus.Registry, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return listener.Run(gCtx)
	})

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	lc := net.ListenConfig{}
	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// newLogger builds the process logger from configuration.
func newLogger(cfg config.LogConfig) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(config.ParseLogLevel(cfg.Level))

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// newMetricsServer builds the Prometheus exposition HTTP server.
func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// listenAndServe serves srv on addr until it is shut down.
func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}
