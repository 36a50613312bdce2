package server

import (
	"context"
	"time"

	"github.com/op/go-logging"
)

// TempSweeper removes stale partial uploads. DiskStore implements it.
type TempSweeper interface {
	SweepTemp(ctx context.Context, maxAge time.Duration) (int, error)
}

// CleanupConfig holds configuration for the cleanup job
type CleanupConfig struct {
	Interval time.Duration // 0 disables the job
	MaxAge   time.Duration
	Sweeper  TempSweeper
	Logger   *logging.Logger
}

// StartCleanupJob sweeps stale temp files every Interval until ctx is done.
// It blocks; run it in a goroutine.
func StartCleanupJob(ctx context.Context, cfg CleanupConfig) {
	if cfg.Interval <= 0 || cfg.Sweeper == nil {
		cfg.Logger.Infof("service=cleanup msg=%q", "disabled")
		return
	}

	cfg.Logger.Infof("service=cleanup msg=%q interval=%s max_age=%s",
		"starting", cfg.Interval, cfg.MaxAge)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// Run immediately on start
	runCleanup(ctx, cfg)

	for {
		select {
		case <-ctx.Done():
			cfg.Logger.Infof("service=cleanup msg=%q", "shutting_down")
			return
		case <-ticker.C:
			runCleanup(ctx, cfg)
		}
	}
}

func runCleanup(ctx context.Context, cfg CleanupConfig) {
	start := time.Now()
	removed, err := cfg.Sweeper.SweepTemp(ctx, cfg.MaxAge)
	if err != nil {
		cfg.Logger.Warningf("service=cleanup msg=%q removed=%d err=%v", "sweep_failed", removed, err)
		return
	}
	cfg.Logger.Debugf("service=cleanup msg=%q removed=%d duration_ms=%d",
		"cleanup_complete", removed, time.Since(start).Milliseconds())
}
