// Package utils provides common utility functions for the enrol-sync application.
// It includes helper functions for type conversion of persisted key/value state and
// string manipulation shared by the feed and reconciliation packages.
package utils
