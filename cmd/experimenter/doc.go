// Command experimenter runs the Experimenter web service and offers
// maintenance commands that operate directly on its SQLite database.
//
// `experimenter serve` starts the web server and task worker. The
// experiments, projects, and tasks command groups read and update the same
// store, so they work whether or not the daemon is running.
package main
