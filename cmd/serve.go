package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"enrol-sync/core/loader"
	"enrol-sync/core/logger"
	"enrol-sync/core/middleware/auth"
	"enrol-sync/core/middleware/rayid"
	"enrol-sync/core/storage"
	"enrol-sync/feature/enrol"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the run triggers",
	Long: `Starts the HTTP server exposing the run endpoints, the interval scheduler
and, when enabled, the feed file watcher. At most one run executes at a time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		env, err := setup()
		if err != nil {
			return err
		}
		defer env.logger.Sync()
		logg := env.logger
		cfg := env.cfg

		g, gctx := errgroup.WithContext(ctx)
		runner := env.runner()

		// 1. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		// 2. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 3. Request logging with the ray id
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 4. Health is public
		app.Get("/health", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"status": "ok", "running": runner.Running()})
		})

		// 5. Auth (Protect API)
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// 6. Load Features
		mgr := loader.NewManager()
		mgr.Register(enrol.NewFeature(gctx, runner, logg))
		if err := mgr.LoadAll(app); err != nil {
			return err
		}

		// 7. Start Server and triggers
		g.Go(func() error {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			return app.Listen(":" + cfg.Server.Port)
		})
		g.Go(func() error {
			<-gctx.Done()
			logg.Info("Shutting down server...")
			return app.Shutdown()
		})

		if cfg.Server.RunInterval > 0 {
			g.Go(func() error {
				return enrol.Schedule(gctx, runner, cfg.Server.RunInterval, logg)
			})
		}

		if cfg.Server.WatchFeed {
			if _, _, remote := storage.ParseURI(cfg.Enrol.FeedLocation); remote {
				logg.Warn("Feed watching needs a local feed, watcher not started", zap.String("feed", cfg.Enrol.FeedLocation))
			} else {
				g.Go(func() error {
					return enrol.Watch(gctx, runner, cfg.Enrol.FeedLocation, cfg.Server.WatchDebounce, logg)
				})
			}
		}

		if !cfg.Server.SchedulingEnabled() {
			logg.Info("No run triggers configured, runs start only through the API")
		}

		return g.Wait()
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
