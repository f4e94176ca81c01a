// Package app provides application bootstrap and the run loop for overseer.
//
// # Bootstrap
//
// NewApplication performs the whole initialization sequence:
//
//  1. Initializes logging for CLI output (debug when requested)
//  2. Loads config.yaml from the configuration directory, defaulting to
//     ~/.config/overseer; a missing file yields an empty configuration
//  3. Re-initializes logging with the configured level and format
//  4. Validates the configuration, including the server type of every server
//  5. Builds one servertype.Server per configured server, all sharing a single
//     events.Dispatcher
//
// Nothing is started during bootstrap.
//
// # Run
//
// Run executes the following steps and then blocks:
//
//   - Serves Prometheus metrics on /metrics when a metrics address is configured
//   - Starts the filesystem watcher of every server with autoPublish
//   - Publishes (full) and starts every server with autoStart, waiting until each
//     one is STARTED or has fallen back to STOPPED
//   - Reports READY=1 to systemd through sd_notify
//
// On SIGINT, SIGTERM or cancellation of the context every server is stopped
// gracefully, then with force if it does not stop within the shutdown timeout.
//
// # Usage
//
//	cfg := app.NewConfig(debug, configPath, metricsAddress)
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
package app
