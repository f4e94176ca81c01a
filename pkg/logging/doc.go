// Package logging provides the structured, subsystem tagged logging used across overseer.
//
// It wraps Go's slog package behind a small printf style API so that every log line
// carries the subsystem that produced it:
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//
//	logging.Info("Lifecycle", "Server %s started in mode %s", name, mode)
//	logging.Debug("Poller", "Probe for %s returned %v", name, up)
//	logging.Warn("Publish", "Deployment folder %s missing, creating it", dir)
//	logging.Error("Launcher", err, "Failed to terminate process %d", pid)
//
// Output of managed server processes is forwarded line by line through Writer:
//
//	stdout := logging.Writer("tomcat/stdout", logging.LevelInfo)
//	defer stdout.Close()
//	cmd.Stdout = stdout
//
// Until Init is called all log calls are silently discarded, which keeps package
// tests quiet unless they opt in.
package logging
