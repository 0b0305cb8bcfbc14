package server_test

import (
	"testing"
	"time"

	"enrol-sync/core/server"

	"github.com/stretchr/testify/assert"
)

func TestConfig_SchedulingEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  server.Config
		want bool
	}{
		{"Ticker", server.Config{RunInterval: time.Hour}, true},
		{"Watcher", server.Config{WatchFeed: true}, true},
		{"Both", server.Config{RunInterval: time.Minute, WatchFeed: true}, true},
		{"Manual", server.Config{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.SchedulingEnabled())
		})
	}
}
