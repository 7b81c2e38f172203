// Package tasks runs deferred work stored in the tasks table.
//
// The API layer enqueues tasks through Queue when an experiment changes
// status. Worker polls the store, claims one task at a time, keeps its
// heartbeat fresh while the handler runs, and records the outcome. Failures
// classified as retryable go back to pending with a linear backoff until the
// attempt budget is spent; anything else fails immediately. Running tasks
// whose heartbeat goes stale (after a crash) are returned to pending on the
// next poll.
//
// Handlers covers the four kinds the workflow produces: review and ship
// emails, creating the Bugzilla tracking bug, and commenting on it.
package tasks
