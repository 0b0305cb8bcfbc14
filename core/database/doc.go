// Package database handles database connections and schema inspection.
//
// It provides a wrapper around GORM (Go Object Relational Mapping) to configure
// MySQL connections for the target learning platform, and SQLite connections for
// local runs and tests.
//
// # Connect
//
// Connect selects the dialector from Config.Driver, applies pool settings and
// verifies the connection with a ping bounded by the configured timeout.
//
// # Schema Inspection
//
// GetTableColumns reads the live column definitions of a table. The check command
// uses it to verify that the enrolment tables carry every column the models expect
// before a run is attempted against a production database.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	columns, err := database.GetTableColumns(db, "course")
package database
