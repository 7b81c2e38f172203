// Package daemon coordinates the long-running Experimenter process.
//
// It wires configuration, the SQLite store, the task worker, and the web
// server into a single lifecycle with flock-based locking to prevent multiple
// instances against the same data directory. The worker and the server run
// side by side under one errgroup; either failing stops the other.
//
// The configuration file is watched while the daemon runs. Any write, rename,
// or removal ends the run with ErrConfigChanged so the supervisor restarts the
// process with the new settings.
//
// Keep orchestration logic here: request handling lives in the web package and
// background side effects in tasks.
package daemon
