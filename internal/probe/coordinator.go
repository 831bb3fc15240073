package probe

import (
	"context"
	"io"
	"sync"
	"time"
)

// failureCapacity lets both probes report without blocking. Only the first
// report is consumed.
const failureCapacity = 2

// Coordinator is shared by the probes of a single attempt. It carries the
// server stdout, the readiness rendezvous, the failure channel and the two
// stop latches: canceled (process wide) and failed (this attempt only).
type Coordinator struct {
	stdoutMx sync.Mutex
	stdout   io.ReadCloser

	ready     chan struct{}
	readyOnce sync.Once

	failures chan Failure
	canceled *Latch
	failed   *Latch
}

// NewCoordinator takes ownership of stdout. canceled is shared between
// attempts; nil creates a private latch.
func NewCoordinator(stdout io.ReadCloser, canceled *Latch) *Coordinator {
	if canceled == nil {
		canceled = NewLatch()
	}
	return &Coordinator{
		stdout:   stdout,
		ready:    make(chan struct{}),
		failures: make(chan Failure, failureCapacity),
		canceled: canceled,
		failed:   NewLatch(),
	}
}

// TakeStdout hands the stdout pipe over to the caller. Only the first call
// gets it, every other call returns nil.
func (c *Coordinator) TakeStdout() io.ReadCloser {
	c.stdoutMx.Lock()
	defer c.stdoutMx.Unlock()
	stdout := c.stdout
	c.stdout = nil
	return stdout
}

// SignalReady crosses the readiness rendezvous. It returns false if it was
// already crossed.
func (c *Coordinator) SignalReady() bool {
	crossed := false
	c.readyOnce.Do(func() {
		close(c.ready)
		crossed = true
	})
	return crossed
}

func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// WaitReady blocks until the server is ready. It returns false when the
// attempt stops or ctx is done first.
func (c *Coordinator) WaitReady(ctx context.Context) bool {
	select {
	case <-c.ready:
		return !c.Stopped()
	case <-c.failed.Done():
	case <-c.canceled.Done():
	case <-ctx.Done():
	}
	return false
}

// ReportFailure never blocks. It returns false when the report was dropped
// because the channel is full.
func (c *Coordinator) ReportFailure(f Failure) bool {
	if f.At.IsZero() {
		f.At = time.Now()
	}
	select {
	case c.failures <- f:
		return true
	default:
		return false
	}
}

func (c *Coordinator) Failures() <-chan Failure {
	return c.failures
}

func (c *Coordinator) IsCanceled() bool {
	return c.canceled.IsSet()
}

func (c *Coordinator) IsFailed() bool {
	return c.failed.IsSet()
}

func (c *Coordinator) MarkFailed() bool {
	return c.failed.Set()
}

func (c *Coordinator) Stopped() bool {
	return c.IsCanceled() || c.IsFailed()
}

// Sleep waits for d. It returns false if the attempt stopped or ctx was
// done in the meantime.
func (c *Coordinator) Sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return !c.Stopped()
	case <-c.failed.Done():
	case <-c.canceled.Done():
	case <-ctx.Done():
	}
	return false
}
