// Package notifications records user-facing messages about background work.
//
// Messages are stored per user and shown once on the next page view, then
// marked read. Background tasks report email deliveries and Bugzilla updates
// through the Service interface; tests can use NewNoop when the messages do
// not matter.
package notifications
