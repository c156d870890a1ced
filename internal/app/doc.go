// Package app provides application initialization and lifecycle management.
// It wires configuration, logging, observability, the analysis services and
// the HTTP server together, and handles graceful shutdown.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from the YAML file and environment
//	2. Initialize logging and OpenTelemetry
//	3. Create the engine, history store and services
//	4. Set up HTTP handlers and middleware
//	5. Configure and start the HTTP server
//	6. Set up graceful shutdown handlers
//
// # Graceful Shutdown
//
// The package handles SIGINT and SIGTERM so active requests complete,
// OpenTelemetry providers flush, and the server closes cleanly. All
// initialization errors are returned to the caller; the package never calls
// os.Exit directly.
package app
