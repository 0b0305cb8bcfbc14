// Package store is the enrolment datastore.
//
// Store lists the queries the reconcilers need. GormStore implements it on top
// of gorm, against MySQL in production and SQLite for local runs and tests.
// Lookups that find nothing return ErrNotFound; callers branch on it with errors.Is.
//
// Updates take a column map rather than a struct so that false and zero values
// are written instead of being skipped by gorm.
package store
