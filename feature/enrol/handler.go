package enrol

import (
	"context"
	"errors"

	"enrol-sync/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for enrolment runs.
type Handler struct {
	runner *Runner
	logger *zap.Logger
	// base outlives the request that starts a background run.
	base context.Context
}

// NewHandler creates a new HTTP handler.
func NewHandler(ctx context.Context, runner *Runner, log *zap.Logger) *Handler {
	return &Handler{runner: runner, logger: log, base: ctx}
}

// RegisterRoutes registers the run routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/runs")
	group.Get("/last", h.HandleGetLastRun)
	group.Post("", h.HandleStartRun)
}

// HandleGetLastRun returns the report of the latest finished run.
// @Summary Get Last Run
// @Description Report of the latest finished enrolment run.
// @Tags runs
// @Produce json
// @Success 200 {object} enrol.Report "Run report"
// @Failure 404 {object} map[string]string "No run yet"
// @Router /runs/last [get]
func (h *Handler) HandleGetLastRun(c *fiber.Ctx) error {
	report := h.runner.LastReport()
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no run has finished yet",
		})
	}
	return c.JSON(report)
}

// HandleStartRun starts a run in the background.
// @Summary Start Run
// @Description Start an enrolment run. Use force=true to process an unchanged feed.
// @Tags runs
// @Produce json
// @Param force query bool false "Process even when the feed is unchanged"
// @Param dry_run query bool false "Plan snapshot retractions without applying them"
// @Success 202 {object} map[string]string "Run accepted"
// @Failure 409 {object} map[string]string "Run in progress"
// @Router /runs [post]
func (h *Handler) HandleStartRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	opts := RunOptions{
		Force:  c.QueryBool("force", false),
		DryRun: c.QueryBool("dry_run", false),
	}

	if err := h.runner.Start(h.base, opts); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			l.Warn("Run requested while another is in progress")
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		l.Error("Failed to start run", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	l.Info("Run started", zap.Bool("force", opts.Force), zap.Bool("dry_run", opts.DryRun))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "accepted",
	})
}
