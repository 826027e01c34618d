package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/ferrydl/ferry"
	"github.com/ferrydl/ferry/delivery"
	"github.com/ferrydl/ferry/filesystem"
	ferryhttp "github.com/ferrydl/ferry/http"
	"github.com/ferrydl/ferry/identity"
	"github.com/ferrydl/ferry/s3store"
	"github.com/ferrydl/ferry/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the ferry HTTP server.`,
	RunE:  runServe,
}

var serveNoMigrate bool

const defaultShutdownTimeout = 30 * time.Second

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (default: 8080, env: FERRY_SERVER_PORT)")
	serveCmd.Flags().String("method", "", "delivery method: force, xsendfile, redirect (env: FERRY_DELIVERY_METHOD)")
	serveCmd.Flags().BoolVar(&serveNoMigrate, "no-migrate", false, "do not create missing tables on startup")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, !serveNoMigrate)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	cfg := a.cfg
	logger := slog.Default()
	slog.Info("connected to database", "type", cfg.Database.Type)

	sandbox, err := filesystem.NewSandbox(a.uploadDir, cfg.Content.SiteRoot, cfg.Content.ContentRoot)
	if err != nil {
		return fmt.Errorf("open content roots: %w", err)
	}
	defer func() { _ = sandbox.Close() }()

	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	resolverOpts := []ferry.ResolverOption{ferry.WithResolverLogger(logger)}
	if cfg.S3.Enabled {
		client, s3Err := s3store.NewClient(ctx, cfg.S3)
		if s3Err != nil {
			return fmt.Errorf("init s3: %w", s3Err)
		}
		presigner := s3store.NewPresigner(s3.NewPresignClient(client), cfg.S3.PresignTTL)
		resolverOpts = append(resolverOpts, ferry.WithHook(presigner.Resolve))
		slog.Info("s3 locators enabled", "bucket", cfg.S3.Bucket)
	}

	dispatcher, err := delivery.New(cfg.Delivery.Dispatcher(), sandbox, a.db.GetOptions(), logger, tel)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	resolverConfig := cfg.Content.Resolver()
	resolverConfig.UploadDir = a.uploadDir

	pipeline := ferryhttp.Pipeline{
		Gate:       newGate(logger),
		Resolver:   ferry.NewResolver(resolverConfig, resolverOpts...),
		Dispatcher: dispatcher,
		Tracker: ferry.NewTracker(a.db.GetRepo(),
			ferry.WithTrackerRecorder(tel),
			ferry.WithTrackerLogger(logger),
		),
	}

	handlerConfig := ferryhttp.HandlerConfig{
		CORS:     cfg.CORS,
		Recorder: tel,
		Logger:   logger,
	}

	auth, err := identity.New(cfg.Auth)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	if auth != nil {
		handlerConfig.Authenticator = auth
	} else {
		slog.Warn("no tokens or jwt secret configured, admin API is unreachable")
	}

	if cfg.Telemetry.Enabled {
		handlerConfig.Metrics = tel.Handler()
		handlerConfig.MetricsPath = cfg.Telemetry.Path
	}

	handler := ferryhttp.NewHandler(&handlerConfig, a.service, pipeline)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	// no WriteTimeout, downloads may stream for a long time
	server := &http.Server{
		Addr:        addr,
		Handler:     handler.Router(),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "method", cfg.Delivery.Method)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "err", err)
		return err
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// newGate builds the access gate with the built-in rule predicates.
func newGate(logger *slog.Logger) *ferry.Gate {
	return ferry.NewGate(ferry.DefaultRuleRegistry(logger), logger)
}
