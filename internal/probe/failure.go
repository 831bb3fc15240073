package probe

import (
	"errors"
	"fmt"
	"time"
)

// Kind tells what made a probe give up on the server.
type Kind string

const (
	// KindNvFBC is the unrecoverable capture error logged after readiness.
	KindNvFBC Kind = "NvFBC"
	// KindWebPortal means the web portal did not answer with 200.
	KindWebPortal Kind = "WebPortal"
	// KindEOF means the server closed its stdout, usually because it exited.
	KindEOF Kind = "EOF"
)

var (
	ErrNoStdout  = errors.New("stdout not available")
	ErrUnhealthy = errors.New("unhealthy response")
)

// Failure is the notification a probe sends to the supervisor.
type Failure struct {
	Kind  Kind
	Probe string
	Err   error // optional cause
	At    time.Time
}

func (f Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}
