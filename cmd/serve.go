package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/yoteibot/internal/bot"
	"github.com/teemow/yoteibot/internal/calendar"
	"github.com/teemow/yoteibot/internal/config"
	"github.com/teemow/yoteibot/internal/executor"
	"github.com/teemow/yoteibot/internal/google"
	"github.com/teemow/yoteibot/internal/instrumentation"
	"github.com/teemow/yoteibot/internal/interpreter"
	"github.com/teemow/yoteibot/internal/line"
	"github.com/teemow/yoteibot/internal/logging"
	"github.com/teemow/yoteibot/internal/memory"
	"github.com/teemow/yoteibot/internal/resolver"
	"github.com/teemow/yoteibot/internal/server"
	"github.com/teemow/yoteibot/internal/store"
)

func newServeCmd() *cobra.Command {
	var debugMode bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the LINE webhook server",
		Long: `Starts the HTTP server that receives LINE webhook events, the Google
OAuth callback endpoint, and (unless disabled) a Prometheus metrics
server on a dedicated port.

Configuration is read from YOTEIBOT_* environment variables; a .env
file in the working directory is loaded if present.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(debugMode)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging. Can also use YOTEIBOT_DEBUG env var.")

	return cmd
}

func runServe(debugMode bool) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.Setup(debugMode || cfg.Debug)
	loc := cfg.Location()

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.Enabled = cfg.MetricsEnabled
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	creds, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	defer func() {
		if err := creds.Close(); err != nil {
			logger.Warn("credential store close failed", logging.Err(err))
		}
	}()

	oauthConf := google.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	tokens := google.NewStoreTokenProvider(oauthConf, creds)

	lineClient, err := line.NewClient(cfg.LINEChannelAccessToken)
	if err != nil {
		return fmt.Errorf("failed to create LINE client: %w", err)
	}

	b, err := bot.New(bot.Config{
		Credentials: creds,
		Interpreter: interpreter.NewOpenAIInterpreter(cfg.OpenAIAPIKey, cfg.OpenAIModel, loc),
		Resolver:    resolver.New(resolver.DefaultMatcherPolicy(), loc),
		Executor:    executor.New(cfg.Timezone, logger),
		Memory:      memory.NewStore(),
		NewCalendar: func(ctx context.Context, userID string) (calendar.Service, error) {
			return calendar.NewClientForUser(ctx, tokens, userID)
		},
		AuthURL: func(userID string) string {
			return google.AuthURL(oauthConf, userID)
		},
		Replier:  lineClient,
		Logger:   logger,
		Metrics:  provider.Metrics(),
		Location: loc,
	})
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	srv, err := server.New(server.Config{
		Addr:          fmt.Sprintf(":%d", cfg.Port),
		ChannelSecret: cfg.LINEChannelSecret,
		Handler:       b,
		OAuth:         oauthConf,
		Credentials:   creds,
		Logger:        logger,
		Metrics:       provider.Metrics(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 2)

	go func() {
		errCh <- srv.Start()
	}()

	// Start metrics server on its own port if enabled
	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(cfg.MetricsAddr, provider)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			errCh <- metricsServer.Start()
		}()
	}

	logger.Info("yoteibot started",
		slog.Int("port", cfg.Port),
		slog.String("timezone", cfg.Timezone),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled),
	)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-shutdownCtx.Done():
	}

	logger.Info("shutdown signal received")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer drainCancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(drainCtx); err != nil {
			logger.Warn("metrics server shutdown failed", logging.Err(err))
		}
	}
	if err := srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
