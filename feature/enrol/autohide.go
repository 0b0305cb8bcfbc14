package enrol

import (
	"context"
	"strconv"
	"time"

	"enrol-sync/core/utils"
	"enrol-sync/feature/enrol/store"

	"go.uber.org/zap"
)

// StateAutoHideLastRun holds the unix time of the last auto-hide sweep.
const StateAutoHideLastRun = "autohide_last_run"

// SweepResult describes one auto-hide attempt.
type SweepResult struct {
	Ran    bool   `json:"ran"`
	Reason string `json:"reason"`
	Hidden int    `json:"hidden"`
}

// AutoHider hides courses some days after their end date.
type AutoHider struct {
	cfg    AutoHideConfig
	store  store.Store
	logger *zap.Logger
}

// NewAutoHider creates an auto-hide sweeper.
func NewAutoHider(cfg AutoHideConfig, st store.Store, log *zap.Logger) *AutoHider {
	return &AutoHider{cfg: cfg, store: st, logger: log}
}

// Sweep runs at most once per day, and only during the configured hour of now.
// Every course whose end date is older than the grace period is hidden and its
// record stamped with now.
func (a *AutoHider) Sweep(ctx context.Context, now time.Time, tally *Tally) (SweepResult, error) {
	log := a.logger.With(zap.Int("hour_to_run", a.cfg.Hour), zap.Int("current_hour", now.Hour()))

	if a.cfg.Hour <= 0 {
		log.Info("Course auto-hide not enabled")
		return SweepResult{Reason: "not enabled"}, nil
	}
	if now.Hour() != a.cfg.Hour {
		log.Info("Course auto-hide skipped, wrong hour")
		return SweepResult{Reason: "wrong hour"}, nil
	}

	raw, err := a.store.GetState(ctx, StateAutoHideLastRun)
	if err != nil {
		return SweepResult{}, err
	}
	last := utils.ToUnixTime(raw)
	if !last.IsZero() && now.Sub(last) <= 24*time.Hour {
		log.Info("Course auto-hide already ran in the last day", zap.Time("last_run", last))
		return SweepResult{Reason: "already ran"}, nil
	}

	cutoff := now.Add(-a.cfg.Grace())
	log.Info("Running course auto-hide", zap.Time("latest_end_date", cutoff))

	due, err := a.store.DueAutoHides(ctx, cutoff.Unix())
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Ran: true}
	for _, row := range due {
		if err := a.store.SetCourseVisible(ctx, row.CourseID, false); err != nil {
			log.Error("Failed to hide course", zap.Uint("course_id", row.CourseID), zap.Error(err))
			tally.Error()
			continue
		}
		if err := a.store.MarkAutoHidden(ctx, row.ID, now.Unix()); err != nil {
			log.Error("Error updating auto-hide record", zap.Uint("course_id", row.CourseID), zap.Error(err))
			tally.Error()
			continue
		}
		log.Info("Hiding course", zap.Uint("course_id", row.CourseID))
		result.Hidden++
	}
	tally.CoursesHidden += result.Hidden
	log.Info("Courses hidden", zap.Int("count", result.Hidden))

	if err := a.store.SetState(ctx, StateAutoHideLastRun, strconv.FormatInt(now.Unix(), 10)); err != nil {
		return result, err
	}
	return result, nil
}
