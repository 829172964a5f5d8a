package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tsarna/aisbridge/pkg/aisbridge/bridge"
	"github.com/tsarna/aisbridge/pkg/aisbridge/config"
	"github.com/tsarna/aisbridge/pkg/aisbridge/events"
	"github.com/tsarna/aisbridge/pkg/aisbridge/fanout"
	"github.com/tsarna/aisbridge/pkg/aisbridge/handshake"
	"github.com/tsarna/aisbridge/pkg/aisbridge/metrics"
	"github.com/tsarna/aisbridge/pkg/aisbridge/o11y"
	"github.com/tsarna/aisbridge/pkg/aisbridge/otel"
	"github.com/tsarna/aisbridge/pkg/aisbridge/status"
	"github.com/tsarna/aisbridge/pkg/aisbridge/upstream"
	"go.uber.org/zap"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge",
	Long: `Connect to the upstream AIS unit and serve its vessel position events to
local websocket subscribers until interrupted.

Settings come from compiled-in defaults, then the optional config file, then
flags.

Examples:
  aisbridge run
  aisbridge run --upstream http://10.0.0.5 --listen :9000
  aisbridge run --config /etc/aisbridge.hcl -v`,
	Args: cobra.NoArgs,
	RunE: runBridge,
}

const shutdownTimeout = 10 * time.Second

var (
	configFile     string
	upstreamURL    string
	listenAddr     string
	reconnectDelay time.Duration
	logLevel       string
	logFile        string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (.hcl, .json, .yaml or .yml)")
	runCmd.Flags().StringVar(&upstreamURL, "upstream", config.DefaultBaseURL, "upstream base URL")
	runCmd.Flags().StringVar(&listenAddr, "listen", fanout.DefaultAddr, "local websocket listen address")
	runCmd.Flags().DurationVar(&reconnectDelay, "reconnect-delay", bridge.DefaultReconnectDelay, "delay before reconnecting")
	runCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&logFile, "log-file", "", "also write logs to this file, rotated by size")
}

// loadConfig applies the config file and then any flags set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("upstream") {
		cfg.Upstream.BaseURL = upstreamURL
	}
	if flags.Changed("listen") {
		cfg.Local.Listen = listenAddr
	}
	if flags.Changed("reconnect-delay") {
		cfg.Upstream.ReconnectDelay = reconnectDelay
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer closeLog()
	defer logger.Sync()

	logger.Info("Starting aisbridge",
		zap.String("version", version),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.String("listen", cfg.Local.Listen),
		zap.String("config", configFile),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	standalone := metrics.NewStandaloneProvider()
	telemetry := otel.NewProvider("aisbridge", version)
	provider := o11y.Multi(standalone, telemetry)

	client, err := handshake.NewClient().
		WithBaseURL(cfg.Upstream.BaseURL).
		WithPath(cfg.Upstream.Path).
		WithLogger(logger).
		WithRequestTimeout(cfg.Upstream.RequestTimeout).
		WithUserAgent(cfg.Upstream.UserAgent).
		Build()
	if err != nil {
		return err
	}

	dialer, err := upstream.NewDialer().
		WithEndpoint(client.Endpoint()).
		WithLogger(logger).
		WithDialTimeout(cfg.Upstream.DialTimeout).
		WithWriteTimeout(cfg.Upstream.WriteTimeout).
		WithMaxFrameBytes(cfg.Upstream.MaxFrameBytes).
		WithPingWatchdog(cfg.Upstream.PingWatchdog).
		WithHeader("User-Agent", cfg.Upstream.UserAgent).
		Build()
	if err != nil {
		return err
	}

	server, err := fanout.NewServerConfig().
		WithAddr(cfg.Local.Listen).
		WithLogger(logger).
		WithQueueSize(cfg.Local.QueueSize).
		WithPingInterval(cfg.Local.PingInterval).
		WithWriteTimeout(cfg.Local.WriteTimeout).
		WithOriginPatterns(cfg.Local.OriginPatterns...).
		WithMetricsProvider(provider).
		Build()
	if err != nil {
		return err
	}

	supervisor, err := bridge.NewSupervisor().
		WithSessions(client).
		WithDialer(bridge.UpstreamDialer(dialer)).
		WithForwarder(server).
		WithReconnectDelay(cfg.Upstream.ReconnectDelay).
		WithForwardEvents(events.NewNameSet(cfg.Events.Forward...)).
		WithQuietEvents(events.NewNameSet(cfg.Events.Quiet...)).
		WithLogger(logger).
		WithMetricsProvider(provider).
		WithTracingProvider(telemetry).
		Build()
	if err != nil {
		return err
	}

	if cfg.Status.Enabled {
		location, err := time.LoadLocation(cfg.Status.Timezone)
		if err != nil {
			return err
		}

		reporter, err := status.NewReporter().
			WithLogger(logger).
			WithUpstream(supervisor).
			WithSubscribers(server).
			WithSnapshots(standalone).
			WithSchedule(cfg.Status.Schedule).
			WithLocation(location).
			Build()
		if err != nil {
			return err
		}

		reporter.Start()
		defer reporter.Stop()
	}

	if err := supervisor.Run(ctx); err != nil {
		return err
	}

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Fan-out server did not shut down cleanly", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
