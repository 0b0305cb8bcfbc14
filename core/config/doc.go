// Package config provides configuration management for enrol-sync.
//
// It utilizes Viper for loading configuration from environment variables,
// the .env file and an optional config.yaml.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key) and run triggers (interval, feed watcher)
//   - Database: learning platform database connection (mysql or sqlite)
//   - Storage: S3/MinIO credentials for remote feeds and the log archive bucket
//   - Log: logging level, format and the optional log file mirror
//   - Enrol: feed location and every reconciliation setting
//
// Scalar settings get their defaults from `default` struct tags and can be
// overridden per environment variable (ENROL_CREATE_NEW_COURSES=true). The
// role and course mapping tables are only read from config.yaml:
//
//	enrol:
//	  role_map:
//	    "02": teacher
//	  course_map:
//	    summary: ignore
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Enrol.FeedLocation)
package config
