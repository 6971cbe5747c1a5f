// Package config loads the pipeline configuration.
//
// Values come from the process environment, optionally seeded from a .env
// file that never overrides variables already set. Unset directories fall
// back to locations next to the executable:
//
//	<exe dir>/output   download directory
//	<exe dir>/logs     log file directory
//
// Database variables use the DB_ prefix, the bastion SSH_, the crawler
// CRAWL_, the loader LOAD_, logging LOG_ and telemetry OTEL_. EXECUTION_ENV
// selects production (direct database connection) or local (SSH tunnel).
package config
