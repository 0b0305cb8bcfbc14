package server

import "time"

// Config holds configuration for the HTTP server and the run scheduler of the serve command.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	ApiKey string `mapstructure:"api_key" default:""`
	// RunInterval is how often a scheduled run is attempted. Zero disables the ticker.
	RunInterval time.Duration `mapstructure:"run_interval" default:"1h"`
	// WatchFeed triggers a run whenever the local feed file is written.
	WatchFeed bool `mapstructure:"watch_feed" default:"false"`
	// WatchDebounce coalesces bursts of file events into one run.
	WatchDebounce time.Duration `mapstructure:"watch_debounce" default:"5s"`
}

// SchedulingEnabled reports whether the serve command triggers runs by itself.
func (c Config) SchedulingEnabled() bool {
	return c.RunInterval > 0 || c.WatchFeed
}
