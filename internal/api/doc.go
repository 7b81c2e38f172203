// Package api is the application layer between the HTTP/CLI surfaces and
// persistence. It applies section forms to experiments, drives the status
// workflow, schedules the background tasks each transition implies, and
// translates experiments into transport-friendly DTOs.
//
// # Key Types
//
// ExperimentService: create, edit, transition, archive, comment on, list, and
// describe experiments. Every write appends a changelog entry carrying the
// acting user.
//
// Experiment/Variant/Change: REST representation of an experiment, its
// branches, and its changelog.
//
// # Status Side Effects
//
// Draft -> Review schedules the review email (flagged for attention when any
// risk question is answered yes) and files the tracking bug if none exists.
//
// Review -> Ship schedules the ready-to-ship email and posts the experiment
// details to the tracking bug when one exists.
//
// # Design Notes
//
// DTOs use snake_case JSON tags. Dates are JavaScript millisecond timestamps
// and changelog times are RFC3339. The population percent is a fixed
// four-decimal string.
package api
