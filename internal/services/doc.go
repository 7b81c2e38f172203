// Package services defines shared utilities consumed by the application
// service, background tasks, and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp request IDs, experiment slugs, acting users,
//     and task identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent HTTP statuses and task retry decisions.
//
// Use these helpers when wiring new handlers or tasks so operational behaviour
// (error handling, observability, retries) stays uniform across the system.
package services
