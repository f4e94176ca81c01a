package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"overseer/internal/api"
	"overseer/internal/events"
	"overseer/internal/launcher"
	"overseer/pkg/logging"
)

// forceStopTimeout bounds the forced stop attempted by Shutdown.
const forceStopTimeout = 10 * time.Second

// Start launches the server in mode. It is only accepted from STOPPED; in any other
// state a cancel status is returned. The instance moves to STARTING and a readiness
// poll runs concurrently with the start launcher; the poll moves it to STARTED.
func (i *Instance) Start(ctx context.Context, mode string) StartResult {
	i.opMu.Lock()
	defer i.opMu.Unlock()

	if st := i.CanStart(mode); !st.IsOK() {
		if st.Severity == api.SeverityError {
			logging.Warn("Lifecycle", "Refusing to start server %s: %s", i.name, st.Message)
		}
		return StartResult{Status: st}
	}

	var n notifications
	i.mu.Lock()
	i.mode = mode
	i.lastErr = nil
	i.setStateLocked(&n, api.StateStarting)
	i.beginPollLocked(api.PollReached)
	i.mu.Unlock()
	n.flush()

	launch, details, err := i.starter.LaunchStart(ctx, mode)
	if err != nil {
		return StartResult{Status: i.startFailed(launch, err), Details: details}
	}

	i.mu.Lock()
	if i.state == api.StateStopped {
		// The start poll timed out while the launcher was still running.
		cause := i.lastErr
		i.mu.Unlock()
		i.watchReleased(launch)
		_ = launch.TerminateAll(false)
		if cause == nil {
			cause = fmt.Errorf("server %s stopped while starting", i.name)
		}
		return StartResult{Status: api.ErrorStatus(cause), Details: details}
	}
	i.trackLaunchLocked(launch)
	i.mu.Unlock()

	return StartResult{Status: api.OKStatus(), Details: details}
}

// startFailed terminates whatever the launcher spawned and moves to STOPPED.
func (i *Instance) startFailed(partial *launcher.Launch, err error) api.Status {
	if !api.IsLaunch(err) {
		err = api.NewLaunchError("start", err)
	}
	logging.Error("Lifecycle", err, "Failed to launch server %s", i.name)

	if partial != nil {
		i.watchReleased(partial)
		_ = partial.TerminateAll(false)
	}

	var n notifications
	i.mu.Lock()
	i.lastErr = err
	i.emitLocked(&n, events.ReasonServerStartFailed, events.EventData{Error: err.Error()})
	i.toStoppedLocked(&n)
	i.mu.Unlock()
	n.flush()

	return api.ErrorStatus(err)
}

// Stop asks the server to stop. It is accepted from every state but STOPPED. The
// instance moves to STOPPING and polls for absence while the shutdown launcher runs.
// The authoritative STOPPED transition comes from the exit of the start launch
// processes; servers started without processes complete on the absence poll.
func (i *Instance) Stop(ctx context.Context, force bool) api.Status {
	i.opMu.Lock()
	defer i.opMu.Unlock()

	var n notifications
	i.mu.Lock()
	prior := i.state
	if prior == api.StateStopped {
		i.mu.Unlock()
		return api.CancelStatus("server %s is %s", i.name, prior)
	}
	i.cancelPollLocked()
	i.setStateLocked(&n, api.StateStopping)
	i.beginPollLocked(api.PollAbsent)
	gen := i.pollGen
	running := i.launch
	i.mu.Unlock()
	n.flush()

	stopLaunch, err := i.stopper.LaunchStop(ctx, launcher.StopRequest{Force: force, Running: running})
	if err != nil {
		return i.stopFailed(prior, gen, stopLaunch, err)
	}

	i.mu.Lock()
	i.watchStopLaunchLocked(stopLaunch)
	i.mu.Unlock()

	logging.Info("Lifecycle", "Stop of server %s requested (force=%t)", i.name, force)
	return api.OKStatus()
}

// stopFailed rolls back to the state before Stop unless something else already
// moved the instance on.
func (i *Instance) stopFailed(prior api.ServerState, gen uint64, stopLaunch *launcher.Launch, err error) api.Status {
	if !api.IsLaunch(err) {
		err = api.NewLaunchError("stop", err)
	}
	logging.Error("Lifecycle", err, "Failed to stop server %s", i.name)

	if stopLaunch != nil {
		i.watchReleased(stopLaunch)
		_ = stopLaunch.TerminateAll(true)
	}

	var n notifications
	i.mu.Lock()
	i.lastErr = err
	i.emitLocked(&n, events.ReasonServerStopFailed, events.EventData{Error: err.Error()})
	if i.state == api.StateStopping && i.pollGen == gen {
		switch prior {
		case api.StateStarting:
			i.setStateLocked(&n, api.StateStarting)
			i.beginPollLocked(api.PollReached)
		case api.StateStarted:
			i.cancelPollLocked()
			i.setStateLocked(&n, api.StateStarted)
		}
	}
	i.mu.Unlock()
	n.flush()

	return api.ErrorStatus(err)
}

// Shutdown stops the server and waits until it is STOPPED. When ctx ends first the
// server is stopped with force.
func (i *Instance) Shutdown(ctx context.Context) error {
	if i.State() == api.StateStopped {
		return nil
	}

	if st := i.Stop(ctx, false); st.Severity == api.SeverityError {
		logging.Warn("Lifecycle", "Graceful stop of server %s failed: %s", i.name, st.Message)
	}
	err := i.WaitForState(ctx, api.StateStopped)
	if err == nil {
		return nil
	}

	logging.Warn("Lifecycle", "Server %s did not stop in time, forcing", i.name)
	forceCtx, cancel := context.WithTimeout(context.Background(), forceStopTimeout)
	defer cancel()
	if st := i.Stop(forceCtx, true); st.Severity == api.SeverityError {
		return errors.Join(err, st.Err)
	}
	return i.WaitForState(forceCtx, api.StateStopped)
}
