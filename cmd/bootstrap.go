package cmd

import (
	"fmt"

	"enrol-sync/core/config"
	"enrol-sync/core/database"
	"enrol-sync/core/logger"
	"enrol-sync/core/storage"
	"enrol-sync/feature/enrol"
	"enrol-sync/feature/enrol/store"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// environment holds what every command needs.
type environment struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	store  *store.GormStore
	client storage.Client
}

// setup loads configuration, builds the logger and connects to the database.
// The storage client is only created when a remote feed or the log archive needs it.
func setup() (*environment, error) {
	// 1. Load Configuration
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(l)

	// 3. Connect to Database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	env := &environment{cfg: cfg, logger: l, db: db, store: store.NewGormStore(db)}

	// 4. Initialize Storage
	if _, _, remote := storage.ParseURI(cfg.Enrol.FeedLocation); remote || cfg.Storage.Bucket != "" {
		if env.client, err = storage.NewClient(cfg.Storage); err != nil {
			return nil, err
		}
	}
	return env, nil
}

// runner builds the enrolment runner with the configured notifier and log archive.
func (e *environment) runner() *enrol.Runner {
	return enrol.NewRunner(e.cfg.Enrol, e.store, e.client, e.logger,
		enrol.WithNotifier(enrol.NewStoreNotifier(e.store, e.logger)),
		enrol.WithLogFile(e.cfg.Log.File),
		enrol.WithLogArchive(e.cfg.Storage.Bucket),
	)
}
