package mock

import (
	"context"
	"sync/atomic"
)

// FakeProbe is a readiness probe controlled by the test.
type FakeProbe struct {
	up    atomic.Bool
	calls atomic.Int64
}

// NewFakeProbe creates a probe reporting up.
func NewFakeProbe(up bool) *FakeProbe {
	p := &FakeProbe{}
	p.up.Store(up)
	return p
}

// Up reports the configured answer. It has the poller.Probe signature.
func (p *FakeProbe) Up(context.Context) bool {
	p.calls.Add(1)
	return p.up.Load()
}

// Set changes the answer.
func (p *FakeProbe) Set(up bool) {
	p.up.Store(up)
}

// Calls returns how often the probe was evaluated.
func (p *FakeProbe) Calls() int64 {
	return p.calls.Load()
}
