package enrol

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"enrol-sync/core/storage"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Schedule runs the runner every interval until ctx is done.
func Schedule(ctx context.Context, runner *Runner, interval time.Duration, log *zap.Logger) error {
	if interval <= 0 {
		return fmt.Errorf("invalid run interval %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("Scheduler started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			log.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
			trigger(ctx, runner, "schedule", log)
		}
	}
}

// Watch starts a run shortly after the local feed file changes. Bursts of
// events within debounce collapse into one run.
func Watch(ctx context.Context, runner *Runner, location string, debounce time.Duration, log *zap.Logger) error {
	if _, _, ok := storage.ParseURI(location); ok || location == "" {
		return fmt.Errorf("feed location %q cannot be watched", location)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: feeds are usually replaced by rename.
	dir := filepath.Dir(location)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	target := filepath.Clean(location)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	log.Info("Watching feed", zap.String("feed", target), zap.Duration("debounce", debounce))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !isFeedChange(ev.Op) {
				continue
			}
			log.Debug("Feed change detected", zap.String("op", ev.Op.String()))
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("Watcher error", zap.Error(err))
		case <-timer.C:
			trigger(ctx, runner, "watch", log)
		}
	}
}

func isFeedChange(op fsnotify.Op) bool {
	return op.Has(fsnotify.Create) || op.Has(fsnotify.Write) || op.Has(fsnotify.Rename)
}

func trigger(ctx context.Context, runner *Runner, source string, log *zap.Logger) {
	report, err := runner.Run(ctx, RunOptions{})
	switch {
	case errors.Is(err, ErrRunInProgress):
		log.Info("Run already in progress, trigger ignored", zap.String("trigger", source))
	case err != nil:
		log.Error("Triggered run failed", zap.String("trigger", source), zap.Error(err))
	default:
		log.Info("Triggered run finished", zap.String("trigger", source),
			zap.String("run_id", report.RunID), zap.Bool("processed", report.Processed))
	}
}
