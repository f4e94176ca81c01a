// Package api holds the types shared between the overseer packages: lifecycle states
// and their legal transitions, the Status value returned to callers, publish states
// and request types, and the error taxonomy.
//
// # Error taxonomy
//
//   - ValidationError: unsupported mode or failed configuration check, raised before any side effect
//   - LaunchError: the external process could not be created or terminated
//   - PollTimeoutError: the target state was not observed within the poll window
//   - PublishError: unsupported artifact kind or I/O failure during reconciliation
//   - InvalidStateError: operation not allowed in the current lifecycle state
//
// Each type has an IsX helper based on errors.As so that wrapped errors are recognized:
//
//	if api.IsLaunch(err) {
//	    // roll back
//	}
package api
