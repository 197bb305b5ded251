// Command fitsync polls the Fitbit Web API once per day per category and
// writes the readings to InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	fitbitadapter "github.com/ericfisherdev/fitsync/internal/adapter/driven/fitbit"
	influxadapter "github.com/ericfisherdev/fitsync/internal/adapter/driven/influx"
	sqliteadapter "github.com/ericfisherdev/fitsync/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/fitsync/internal/adapter/driving/http"
	"github.com/ericfisherdev/fitsync/internal/application"
	"github.com/ericfisherdev/fitsync/internal/config"
	"github.com/ericfisherdev/fitsync/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Database bootstrap retries at a fixed interval while InfluxDB starts.
const (
	dbRetryInterval = 15 * time.Second
	dbRetryTries    = 20
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Info("config loaded",
		"db_addr", cfg.DBAddr(),
		"db_name", cfg.DBName,
		"state_path", cfg.StatePath,
		"units", cfg.Units,
		"poll_pause", cfg.PollPause,
		"listen_addr", cfg.ListenAddr,
		"state_encrypted", cfg.SecretKey != nil,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open state database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.StatePath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("state database opened", "path", cfg.StatePath)

	// 4. Run migrations on writer connection.
	schemaVersion, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "schema_version", schemaVersion)

	// 5. Wire state stores.
	credentialStore, err := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	if err != nil {
		return err
	}
	cursorStore := sqliteadapter.NewCursorRepo(db)

	// 6. Resolve tokens: persisted values take priority over env vars.
	persisted, err := credentialStore.LoadTokens(ctx)
	if err != nil {
		return fmt.Errorf("load persisted tokens: %w", err)
	}
	cfg, err = cfg.WithPersistedTokens(persisted)
	if err != nil {
		return err
	}
	if !cfg.TokensFromState {
		if err := credentialStore.SaveTokens(ctx, cfg.Tokens()); err != nil {
			return fmt.Errorf("persist seed tokens: %w", err)
		}
		slog.Info("seed tokens persisted from environment")
	} else {
		slog.Info("using persisted tokens", "expires_at", cfg.ExpiresAt)
	}

	// 7. Telemetry (noop without an OTLP endpoint).
	telemetryProvider, err := telemetry.NewProvider(ctx, cfg.OTLPEndpoint, version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown error", "error", err)
		}
	}()
	metrics, err := telemetry.NewMetrics(telemetryProvider.Meter())
	if err != nil {
		return err
	}

	// 8. Time-series database.
	writer, err := influxadapter.NewWriter(influxadapter.Options{
		Addr:     cfg.DBAddr(),
		Username: cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer func() { _ = writer.Close() }()

	if err := writer.EnsureDatabase(ctx, dbRetryInterval, dbRetryTries); err != nil {
		if ctx.Err() != nil {
			slog.Info("shutdown requested before database was ready")
			return nil
		}
		return err
	}
	slog.Info("time-series database ready", "db_name", cfg.DBName)

	// 9. Vendor adapters and application services.
	fitbitClient := fitbitadapter.NewClient(cfg.APIBaseURL, cfg.Units)
	refresher := fitbitadapter.NewTokenRefresher(cfg.ClientID, cfg.ClientSecret, cfg.TokenURL, cfg.CallbackURL,
		&http.Client{Timeout: fitbitadapter.RefreshTimeout})

	tokenStore := application.NewTokenStore(cfg.Credentials(), refresher, credentialStore, metrics)
	poller := application.NewPoller(tokenStore, fitbitClient, writer, cursorStore, metrics, cfg.PollPause)
	statusSvc := application.NewStatusService(poller, tokenStore, cursorStore)

	// 10. Optional status API.
	var srv *http.Server
	if cfg.ListenAddr != "" {
		apiHandler := httphandler.NewHandler(statusSvc, slog.Default())
		srv = &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		go func() {
			slog.Info("http server starting", "addr", cfg.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "error", err)
			}
		}()
	}

	slog.Info("fitsync started", "version", version)

	// 11. Run the poller until a shutdown signal.
	poller.Run(ctx)
	slog.Info("shutting down")

	// 12. Graceful shutdown with 10s timeout for HTTP server drain.
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}
