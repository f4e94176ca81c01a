package lifecycle

import (
	"context"
	"time"

	"overseer/internal/api"
	"overseer/internal/events"
	"overseer/internal/launcher"
	"overseer/internal/metrics"
	"overseer/internal/poller"
	"overseer/internal/watcher"
	"overseer/pkg/logging"
)

// notifications collects listener calls and events produced under the lock; they are
// flushed after the lock is released.
type notifications []func()

func (n notifications) flush() {
	for _, f := range n {
		f()
	}
}

func (i *Instance) emitLocked(n *notifications, reason events.EventReason, data events.EventData) {
	data.Server = i.name
	sink := i.sink
	*n = append(*n, func() { sink.Emit(reason, data) })
}

// setStateLocked moves to the given state if the edge is legal. It reports whether
// the state changed.
func (i *Instance) setStateLocked(n *notifications, to api.ServerState) bool {
	from := i.state
	if from == to {
		return false
	}
	if !api.CanTransition(from, to) {
		logging.Error("Lifecycle", &api.InvalidStateError{Server: i.name, State: from, Operation: "move to " + string(to)},
			"Refusing illegal transition %s -> %s", from, to)
		return false
	}

	now := time.Now()
	elapsed := now.Sub(i.since)
	i.state = to
	i.since = now
	close(i.changed)
	i.changed = make(chan struct{})

	logging.Info("Lifecycle", "Server %s: %s -> %s", i.name, from, to)
	metrics.RecordTransition(i.name, string(from), string(to))

	listeners := append([]StateListener(nil), i.listeners...)
	*n = append(*n, func() {
		for _, l := range listeners {
			l(from, to)
		}
	})

	data := events.EventData{State: string(to), PreviousState: string(from)}
	switch to {
	case api.StateStarting:
		data.Mode = i.mode
		i.emitLocked(n, events.ReasonServerStarting, data)
	case api.StateStarted:
		if from == api.StateStarting {
			data.Duration = elapsed
		}
		i.emitLocked(n, events.ReasonServerStarted, data)
	case api.StateStopping:
		i.emitLocked(n, events.ReasonServerStopping, data)
	case api.StateStopped:
		i.emitLocked(n, events.ReasonServerStopped, data)
	}
	return true
}

// toStoppedLocked ends in STOPPED along legal edges, passing through STOPPING when
// the instance is STARTED. Mode, launch and polls are cleared.
func (i *Instance) toStoppedLocked(n *notifications) {
	i.cancelPollLocked()
	if i.state == api.StateStarted {
		i.setStateLocked(n, api.StateStopping)
	}
	i.setStateLocked(n, api.StateStopped)
	i.mode = ""
	i.clearLaunchLocked()
}

func (i *Instance) clearLaunchLocked() {
	if i.watcher != nil {
		i.watcher.Close()
		i.watcher = nil
	}
	i.launch = nil
}

// releaseLaunchLocked detaches the tracked launch without closing its watcher, so
// processes terminated afterwards are still reported. The identity check in
// onLaunchTerminated keeps a released launch from driving state.
func (i *Instance) releaseLaunchLocked() *launcher.Launch {
	launch := i.launch
	i.watcher = nil
	i.launch = nil
	return launch
}

// beginPollLocked supersedes any running poll with a new one for target.
func (i *Instance) beginPollLocked(target api.PollTarget) {
	i.cancelPollLocked()

	timeout := i.startupTimeout
	if target == api.PollAbsent {
		timeout = i.shutdownTimeout
	}

	i.pollGen++
	h := poller.Poll(context.Background(), poller.Request{
		Server:   i.name,
		Target:   target,
		Timeout:  timeout,
		Interval: i.pollInterval,
		Probe:    i.probe,
	})
	i.poll = h
	go i.awaitPoll(h, i.pollGen)
}

func (i *Instance) cancelPollLocked() {
	if i.poll != nil {
		i.poll.Cancel()
		i.poll = nil
	}
}

// awaitPoll applies the outcome of a poll unless it was superseded.
func (i *Instance) awaitPoll(h *poller.Handle, gen uint64) {
	r := <-h.Result()
	if r.Outcome == poller.OutcomeCancelled {
		return
	}

	var n notifications
	var terminate *launcher.Launch

	i.mu.Lock()
	if i.poll != h || i.pollGen != gen {
		i.mu.Unlock()
		return
	}
	i.poll = nil

	switch r.Target {
	case api.PollReached:
		if i.state != api.StateStarting {
			break
		}
		if r.Outcome == poller.OutcomeReached {
			i.setStateLocked(&n, api.StateStarted)
			break
		}
		terminate = i.releaseLaunchLocked()
		i.lastErr = r.Err
		i.emitLocked(&n, events.ReasonServerPollTimedOut, events.EventData{
			State:    string(api.StateStarted),
			Duration: h.Request().Timeout,
			Error:    r.Err.Error(),
		})
		i.toStoppedLocked(&n)

	case api.PollAbsent:
		if i.state != api.StateStopping {
			break
		}
		if r.Outcome == poller.OutcomeReached {
			if !i.launch.HasProcesses() {
				i.toStoppedLocked(&n)
			}
			break
		}
		i.lastErr = r.Err
		i.emitLocked(&n, events.ReasonServerPollTimedOut, events.EventData{
			State:    string(api.StateStopped),
			Duration: h.Request().Timeout,
			Error:    r.Err.Error(),
		})
		i.setStateLocked(&n, api.StateStarted)
	}
	i.mu.Unlock()

	n.flush()
	if terminate != nil {
		logging.Info("Lifecycle", "Terminating %s of server %s after start timeout", terminate, i.name)
		_ = terminate.TerminateAll(false)
	}
}

// trackLaunchLocked makes launch the tracked start launch and watches its processes.
// Launches without processes are tracked but never watched.
func (i *Instance) trackLaunchLocked(launch *launcher.Launch) {
	i.clearLaunchLocked()
	i.launch = launch
	if !launch.HasProcesses() {
		logging.Info("Lifecycle", "Server %s started without processes, it is managed externally", i.name)
		return
	}
	w := watcher.New(launch, watcher.Callbacks{
		OnProcessTerminated: func(p launcher.Process) { i.onProcessTerminated(p) },
		OnAllTerminated:     func() { i.onLaunchTerminated(launch) },
	})
	i.watcher = w
	w.Start()
}

// watchStopLaunchLocked reports the processes of a stop launch; they never drive state.
func (i *Instance) watchStopLaunchLocked(launch *launcher.Launch) {
	if i.stopWatcher != nil {
		i.stopWatcher.Close()
		i.stopWatcher = nil
	}
	if !launch.HasProcesses() {
		return
	}
	w := watcher.New(launch, watcher.Callbacks{
		OnProcessTerminated: func(p launcher.Process) { i.onProcessTerminated(p) },
	})
	i.stopWatcher = w
	w.Start()
}

// watchReleased reports the processes of a launch that was never tracked, such as a
// partial start launch about to be terminated. It never drives state.
func (i *Instance) watchReleased(launch *launcher.Launch) {
	if launch == nil || !launch.HasProcesses() {
		return
	}
	watcher.New(launch, watcher.Callbacks{
		OnProcessTerminated: func(p launcher.Process) { i.onProcessTerminated(p) },
	}).Start()
}

func (i *Instance) onProcessTerminated(p launcher.Process) {
	metrics.RecordProcessExit(i.name)
	data := events.EventData{Server: i.name, ProcessID: p.ID()}
	if err := p.ExitErr(); err != nil {
		data.Error = err.Error()
	}
	i.sink.Emit(events.ReasonServerProcessTerminated, data)
}

// onLaunchTerminated moves to STOPPED once every process of the tracked start launch
// exited, whatever the current state.
func (i *Instance) onLaunchTerminated(launch *launcher.Launch) {
	var n notifications

	i.mu.Lock()
	if i.launch != launch {
		i.mu.Unlock()
		return
	}
	logging.Info("Lifecycle", "All processes of server %s exited", i.name)
	i.toStoppedLocked(&n)
	i.mu.Unlock()

	n.flush()
}
