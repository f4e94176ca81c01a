package events

import (
	"time"
)

// EventType represents the severity of an event.
type EventType string

const (
	// EventTypeNormal indicates normal, non-problematic events.
	EventTypeNormal EventType = "Normal"

	// EventTypeWarning indicates events that may require attention.
	EventTypeWarning EventType = "Warning"
)

// EventReason represents the reason code for an event.
type EventReason string

// Server lifecycle event reasons
const (
	// ReasonServerStarting indicates a start was accepted and the launcher was invoked.
	ReasonServerStarting EventReason = "ServerStarting"

	// ReasonServerStarted indicates the readiness probe confirmed the server is up.
	ReasonServerStarted EventReason = "ServerStarted"

	// ReasonServerStopping indicates a stop was accepted and the shutdown launcher was invoked.
	ReasonServerStopping EventReason = "ServerStopping"

	// ReasonServerStopped indicates the server reached STOPPED.
	ReasonServerStopped EventReason = "ServerStopped"

	// ReasonServerStartFailed indicates the start launcher failed.
	ReasonServerStartFailed EventReason = "ServerStartFailed"

	// ReasonServerStopFailed indicates the shutdown launcher failed and the state was rolled back.
	ReasonServerStopFailed EventReason = "ServerStopFailed"

	// ReasonServerPollTimedOut indicates a readiness or absence probe did not reach its target in time.
	ReasonServerPollTimedOut EventReason = "ServerPollTimedOut"

	// ReasonServerProcessTerminated is emitted once per terminated process of a watched launch.
	ReasonServerProcessTerminated EventReason = "ServerProcessTerminated"
)

// Deployable event reasons
const (
	// ReasonDeployableStateChanged indicates a deployable's publish or run state changed.
	ReasonDeployableStateChanged EventReason = "DeployableStateChanged"

	// ReasonDeployablePublishFailed indicates publishing a deployable failed.
	ReasonDeployablePublishFailed EventReason = "DeployablePublishFailed"
)

// EventData contains the values used to render event messages.
type EventData struct {
	// Server is the name of the managed server.
	Server string

	// Deployable is the deployable label for deployable events.
	Deployable string

	// State is the new state (lifecycle or publish state).
	State string

	// PreviousState is the state before the change.
	PreviousState string

	// Mode is the launch mode.
	Mode string

	// ProcessID identifies a process for process events.
	ProcessID string

	// Error contains error information for failure events.
	Error string

	// Duration is the duration of an operation.
	Duration time.Duration
}

// Event is a rendered event as delivered to listeners and subscribers.
type Event struct {
	Reason    EventReason
	Type      EventType
	Message   string
	Data      EventData
	Timestamp time.Time
}

// getEventType returns the appropriate EventType for a given EventReason.
func getEventType(reason EventReason) EventType {
	switch reason {
	case ReasonServerStartFailed,
		ReasonServerStopFailed,
		ReasonServerPollTimedOut,
		ReasonDeployablePublishFailed:
		return EventTypeWarning
	default:
		return EventTypeNormal
	}
}
