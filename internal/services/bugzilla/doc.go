// Package bugzilla files and updates the tracking bug of an experiment.
//
// # Entry Points
//
// NewClient: construct a client from the Bugzilla section of the config.
// Client.CreateBug: file the Shield study bug and return its id.
// Client.AddComment: post the experiment details to an existing bug.
//
// # Invalid Assignees
//
// Experiment owners do not always have a Bugzilla account. When Bugzilla
// rejects the assignee (error code 51) the bug is filed again without one.
//
// # Errors
//
// Transport failures, Bugzilla error payloads, and unparsable responses are
// returned as *Error, which matches services.ErrExternal. Retrying is left to
// the task worker.
package bugzilla
