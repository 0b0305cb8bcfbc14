// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance that supports different environments (development vs production)
// and mirrors output to an optional log file, which is where enrolment runs leave their
// human-readable trail for administrators.
//
// # Correlation
//
//   - WithRunID tags every line of one enrolment run with a run_id.
//   - WithRayID extracts the RayID from a Fiber context for API requests.
//
// # Configuration
//
// The package supports configuration for:
//   - Level: debug, info, warn, error
//   - Encoding: json (production) or console (development)
//   - File: optional append-only mirror of the log
//
// # Usage
//
//	log, _ := logger.New(&cfg.Log)
//	runLog, runID := logger.WithRunID(log)
//	runLog.Info("Found feed", zap.String("path", path))
package logger
