// Package history persists finished renders in SQLite.
//
// The tracker deliberately forgets a job the moment it completes, fails, or
// is cancelled; this package is the durable record that outlives it. The
// daemon projects terminal tracker events onto history rows so the CLI can
// answer "what rendered last night" after every in-memory trace is gone.
//
// The Store manages the database connection, schema initialization, and the
// retention cap that keeps the table from growing without bound. Schema
// changes bump the version in store.go; users clear the database to adopt
// the new schema.
package history
