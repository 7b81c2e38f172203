// Package store persists experiments, their variants, changelog, comments,
// users, projects, notifications, and background tasks in SQLite.
//
// Open applies the embedded migrations and configures WAL mode, foreign keys,
// and a busy timeout. Writes retry with exponential backoff while SQLite
// reports the database as busy, and multi-row changes (experiment plus
// changelog, variant replacement, task claims) run in one transaction.
package store
