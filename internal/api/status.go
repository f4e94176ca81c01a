package api

import "fmt"

// Severity classifies a Status.
type Severity string

const (
	SeverityOK     Severity = "ok"
	SeverityError  Severity = "error"
	SeverityCancel Severity = "cancel"
)

// Status is the result reported to callers of lifecycle and publish operations.
// Failures are reported as a Status rather than escalated so that no condition in the
// lifecycle core is fatal to the managing process.
type Status struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message,omitempty"`

	// Err is the underlying error for error statuses. It is not serialized.
	Err error `json:"-"`
}

// OKStatus returns a successful status.
func OKStatus() Status {
	return Status{Severity: SeverityOK}
}

// ErrorStatus wraps err into an error status whose message is err's message.
func ErrorStatus(err error) Status {
	if err == nil {
		return OKStatus()
	}
	return Status{Severity: SeverityError, Message: err.Error(), Err: err}
}

// CancelStatus reports that an operation was not applicable in the current state.
func CancelStatus(format string, args ...interface{}) Status {
	return Status{Severity: SeverityCancel, Message: fmt.Sprintf(format, args...)}
}

// IsOK reports whether the status is successful.
func (s Status) IsOK() bool {
	return s.Severity == SeverityOK
}

func (s Status) String() string {
	if s.Message == "" {
		return string(s.Severity)
	}
	return fmt.Sprintf("%s: %s", s.Severity, s.Message)
}
