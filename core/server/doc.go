// Package server holds the HTTP server configuration for the serve command.
//
// The serve command exposes a small API to inspect and trigger enrolment runs and
// schedules runs on an interval and/or when the feed file changes on disk.
//
// # Configuration
//
// The Config struct defines the HTTP port, the API key, the run interval and the
// feed watcher settings.
package server
