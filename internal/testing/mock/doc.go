// Package mock provides fakes for testing overseer components without spawning
// real server processes.
//
// FakeProcess is a launcher.Process whose exit is driven by the test. FakeLauncher
// implements both launcher.StartLauncher and launcher.ShutdownLauncher with
// configurable behavior and call recording. FakeProbe is a readiness probe whose
// answer the test flips.
//
// Example:
//
//	l := mock.NewFakeLauncher()
//	inst := lifecycle.New(lifecycle.Options{Start: l, Stop: l, Probe: probe.Up})
//	inst.Start(ctx, "run")
//	l.LastStart().Processes[0].(*mock.FakeProcess).Exit(nil)
package mock
