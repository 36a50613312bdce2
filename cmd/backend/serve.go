package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/op/go-logging"
	"github.com/spf13/viper"

	"picdrop/internal/assets"
	"picdrop/internal/audit"
	"picdrop/internal/config"
	"picdrop/internal/logger"
	"picdrop/internal/server"
	"picdrop/internal/telemetry"
)

const serviceName = "picdrop"

// runServe loads configuration, wires the store, audit trail and telemetry,
// and serves until SIGINT, SIGTERM or ctx is cancelled.
func runServe(ctx context.Context, v *viper.Viper, cfgFile string, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	// Safety: refuse to start without admin credentials or with bad settings.
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(stderr, cfg.Log.Level)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Init(ctx, serviceName, version, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Errorf("service=backend msg=%q err=%v", "telemetry_init_failed", err)
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Warningf("service=backend msg=%q err=%v", "telemetry_shutdown_failed", err)
		}
	}()

	store, sweeper, err := buildStore(cfg)
	if err != nil {
		log.Errorf("service=backend msg=%q err=%v", "storage_config_failed", err)
		return err
	}
	if err := store.Initialize(ctx); err != nil {
		log.Errorf("service=backend msg=%q backend=%s err=%v", "storage_init_failed", cfg.Storage.Backend, err)
		return err
	}
	log.Infof("service=backend msg=%q backend=%s naming=%s", "storage_ready", cfg.Storage.Backend, cfg.Storage.Naming)

	recorder, closeAudit, err := openAudit(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	srv := server.New(server.Config{
		Addr:   cfg.Addr(),
		Build:  server.BuildInfo{Version: version, Commit: commit},
		Store:  store,
		Audit:  recorder,
		Logger: log,
		Auth: server.AuthConfig{
			User:         cfg.Auth.User,
			Password:     cfg.Auth.Password,
			PasswordHash: cfg.Auth.PasswordHash,
			Realm:        cfg.Auth.Realm,
			MaxFailures:  cfg.Auth.MaxFailures,
			Lockout:      cfg.Auth.Lockout,
		},
		Upload: server.UploadConfig{
			MaxBytes:   cfg.Upload.MaxBytes,
			ImagesOnly: cfg.Upload.ImagesOnly,
		},
		CORSOrigin: cfg.CORS.Origin,
		RateLimit: server.RateLimitConfig{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
		},
		TrustProxy: cfg.TrustProxy,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sweeper != nil {
		go server.StartCleanupJob(ctx, server.CleanupConfig{
			Interval: cfg.Storage.CleanupInterval,
			MaxAge:   cfg.Storage.TempMaxAge,
			Sweeper:  sweeper,
			Logger:   log,
		})
	}

	// Start the HTTP server in a background goroutine so we can wait for
	// a shutdown signal here.
	errCh := make(chan error, 1)
	go func() {
		log.Infof("service=backend msg=%q addr=%s version=%s commit=%s",
			"starting", cfg.Addr(), version, commit)
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Infof("service=backend msg=%q", "shutting_down")
		// Give in-flight requests 5 seconds to finish.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("service=backend msg=%q err=%v", "shutdown_error", err)
			return err
		}
		log.Infof("service=backend msg=%q", "shutdown_complete")
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("service=backend msg=%q err=%v", "server_error", err)
			return err
		}
		return nil
	}
}

// buildStore assembles the configured backend. Remote stores sit behind a
// circuit breaker; every store is traced. The sweeper is non-nil only for
// the disk backend.
func buildStore(cfg config.Config) (assets.Store, server.TempSweeper, error) {
	namer, ok := assets.NamerFor(cfg.Storage.Naming)
	if !ok {
		return nil, nil, fmt.Errorf("unknown naming scheme %q", cfg.Storage.Naming)
	}

	switch cfg.Storage.Backend {
	case "disk":
		disk := assets.NewDiskStore(cfg.Storage.Dir, namer)
		return assets.NewTraced(disk), disk, nil
	case "s3":
		s3, err := assets.NewS3Store(assets.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
		}, namer)
		if err != nil {
			return nil, nil, err
		}
		var store assets.Store = s3
		if cfg.S3.BreakerFailures > 0 {
			store = assets.NewBreaker(s3, cfg.S3.BreakerFailures, cfg.S3.BreakerTimeout)
		}
		return assets.NewTraced(store), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// openAudit connects and migrates the audit database when a URL is set.
// Without one, events are discarded.
func openAudit(databaseURL string, log *logging.Logger) (audit.Recorder, func(), error) {
	if databaseURL == "" {
		log.Infof("service=audit msg=%q", "disabled")
		return audit.Nop{}, func() {}, nil
	}

	log.Infof("service=audit msg=%q", "running_migrations")
	if err := audit.Migrate(databaseURL); err != nil {
		log.Errorf("service=audit msg=%q err=%v", "migration_failed", err)
		return nil, nil, err
	}

	db, err := audit.OpenDB(databaseURL)
	if err != nil {
		log.Errorf("service=audit msg=%q err=%v", "db_connect_failed", err)
		return nil, nil, err
	}
	log.Infof("service=audit msg=%q", "ready")
	return audit.NewPostgres(db), func() { _ = db.Close() }, nil
}
