// Package config loads, normalizes, and validates Experimenter configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BUGZILLA_API_KEY and EXPERIMENTER_HOSTNAME. The Config type centralizes
// every knob the web server, task worker, and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, derived Bugzilla endpoints, and clear validation errors.
package config
