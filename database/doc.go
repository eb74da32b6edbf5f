// Package database opens the SQLite database behind the SQL event log using
// GORM, with connection retries, pool settings, a logger adapter and a
// lifecycle component.
package database
