// Package lifecycle implements the state machine of a managed server.
//
// An Instance is in one of four states:
//
//	STOPPED --Start--> STARTING --poll reached--> STARTED
//	                      |                          |
//	                      +--------Stop------> STOPPING <--Stop--+
//	                                              |
//	                         processes exited --> STOPPED
//
// Three independent signals drive it: the caller (Start, Stop), the State Poller
// confirming readiness or absence, and the Process Watcher reporting that every
// process of the tracked start launch exited. The process exit path stops the
// instance from any state; a server that dies while STARTED passes through STOPPING.
//
// Failures never panic and never escape as fatal errors. A launch error during Start
// terminates whatever was spawned and lands in STOPPED; a launch error during Stop
// rolls back to the prior state. A start poll timeout terminates the launch and lands
// in STOPPED; a stop poll timeout returns to STARTED. In both cases LastError holds
// the *api.PollTimeoutError.
//
// A start launch without processes describes a server managed outside overseer. It is
// never stopped by the watcher; Stop completes when the absence poll succeeds.
package lifecycle
