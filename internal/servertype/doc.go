// Package servertype composes the lifecycle, launcher, poller and publish packages
// into concrete managed servers.
//
// A server type is a Preset: default command templates, the readiness probe, the
// supported artifact patterns and the deployment folder resolution. Generic wires a
// Preset and a config.ServerConfig into a lifecycle.Instance plus a publish
// Publisher and exposes both through the Lifecycle and Publishable capability
// interfaces.
//
// Registry keeps the servers of one overseer process by name.
package servertype
