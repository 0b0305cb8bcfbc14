package enrol

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	handler *Handler
}

// NewFeature creates the enrolment feature around runner.
func NewFeature(ctx context.Context, runner *Runner, log *zap.Logger) *Feature {
	return &Feature{handler: NewHandler(ctx, runner, log)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "enrol"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
