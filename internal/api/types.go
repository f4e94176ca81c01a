package api

// ServerState is the lifecycle state of a managed server instance.
type ServerState string

const (
	StateStopped  ServerState = "stopped"
	StateStarting ServerState = "starting"
	StateStarted  ServerState = "started"
	StateStopping ServerState = "stopping"
)

// IsRunning reports whether the state has a live (or coming up) server process behind it.
func (s ServerState) IsRunning() bool {
	return s == StateStarting || s == StateStarted
}

// legalTransitions lists every edge of the lifecycle graph. There is no direct
// STOPPED->STARTED or STARTED->STOPPED edge: a server that dies while STARTED passes
// through STOPPING.
var legalTransitions = map[ServerState][]ServerState{
	StateStopped:  {StateStarting},
	StateStarting: {StateStarted, StateStopped, StateStopping},
	StateStarted:  {StateStopping},
	StateStopping: {StateStopped, StateStarted, StateStarting},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
// A self transition is never legal.
func CanTransition(from, to ServerState) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Launch modes understood by the built-in server types.
const (
	ModeRun   = "run"
	ModeDebug = "debug"
)

// PollTarget is the state a poller waits for.
type PollTarget string

const (
	// PollReached waits until the server answers its readiness probe.
	PollReached PollTarget = "reached"
	// PollAbsent waits until the server no longer answers.
	PollAbsent PollTarget = "absent"
)
