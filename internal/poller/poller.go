package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"overseer/internal/api"
	"overseer/internal/metrics"
	"overseer/pkg/logging"
)

// DefaultInterval is used when a request does not set one.
const DefaultInterval = time.Second

// Outcome is how a poll ended.
type Outcome string

const (
	OutcomeReached   Outcome = "reached"
	OutcomeTimedOut  Outcome = "timed-out"
	OutcomeCancelled Outcome = "cancelled"
)

// Probe reports whether the server currently answers.
type Probe func(ctx context.Context) bool

// Request describes one poll.
type Request struct {
	// Server names the owning server, used for logs, errors and metrics.
	Server string

	Target api.PollTarget

	// Timeout bounds the poll. Zero means the poll runs until cancelled.
	Timeout time.Duration

	// Interval between probe evaluations, DefaultInterval when zero.
	Interval time.Duration

	Probe Probe
}

// Result is delivered exactly once per poll.
type Result struct {
	Outcome Outcome
	Target  api.PollTarget

	// Err is a *api.PollTimeoutError for timed out polls, nil otherwise.
	Err error

	Elapsed time.Duration
}

// Handle controls a running poll.
type Handle struct {
	req     Request
	cancel  context.CancelFunc
	started time.Time

	finished atomic.Bool
	result   chan Result
}

// Poll starts evaluating req.Probe on its own goroutine until the probe matches the
// target, the timeout elapses, ctx ends or the handle is cancelled.
func Poll(ctx context.Context, req Request) *Handle {
	if req.Interval <= 0 {
		req.Interval = DefaultInterval
	}
	pollCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		req:     req,
		cancel:  cancel,
		started: time.Now(),
		result:  make(chan Result, 1),
	}
	logging.Debug("Poller", "Polling server %s for %s (timeout %s, interval %s)", req.Server, req.Target, req.Timeout, req.Interval)
	go h.run(pollCtx)
	return h
}

// Result returns the channel the single Result is delivered on.
func (h *Handle) Result() <-chan Result {
	return h.result
}

// Request returns the request the poll was started with.
func (h *Handle) Request() Request {
	return h.req
}

// Cancel stops the poll. If no outcome was delivered yet, CANCELLED is delivered
// before Cancel returns and no later outcome follows.
func (h *Handle) Cancel() {
	h.finish(Result{Outcome: OutcomeCancelled})
	h.cancel()
}

func (h *Handle) run(ctx context.Context) {
	defer h.cancel()

	waitCtx := ctx
	if h.req.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, h.req.Timeout)
		defer cancel()
	}

	want := h.req.Target == api.PollReached
	err := wait.PollUntilContextCancel(waitCtx, h.req.Interval, true, func(ctx context.Context) (bool, error) {
		return h.req.Probe(ctx) == want, nil
	})

	switch {
	case err == nil:
		h.finish(Result{Outcome: OutcomeReached})
	case ctx.Err() != nil:
		h.finish(Result{Outcome: OutcomeCancelled})
	case errors.Is(err, context.DeadlineExceeded) || wait.Interrupted(err):
		h.finish(Result{
			Outcome: OutcomeTimedOut,
			Err: &api.PollTimeoutError{
				Server:  h.req.Server,
				Target:  h.req.Target,
				Timeout: h.req.Timeout,
			},
		})
	default:
		h.finish(Result{Outcome: OutcomeCancelled, Err: err})
	}
}

// finish delivers r unless an outcome was already delivered.
func (h *Handle) finish(r Result) bool {
	if !h.finished.CompareAndSwap(false, true) {
		return false
	}
	r.Target = h.req.Target
	r.Elapsed = time.Since(h.started)

	metrics.RecordPoll(h.req.Server, string(h.req.Target), string(r.Outcome), r.Elapsed)
	if r.Outcome == OutcomeTimedOut {
		logging.Warn("Poller", "Server %s did not become %s within %s", h.req.Server, h.req.Target, h.req.Timeout)
	} else {
		logging.Debug("Poller", "Poll of server %s for %s finished: %s after %s", h.req.Server, h.req.Target, r.Outcome, r.Elapsed)
	}

	h.result <- r
	return true
}
