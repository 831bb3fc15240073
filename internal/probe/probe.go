// Package probe turns the liveness signals of the supervised server into
// Failure notifications.
//
// Two probes exist. LogProbe reads the server stdout, crosses the readiness
// rendezvous and reports the NvFBC error or the end of the stream. HTTPProbe
// waits for readiness and then checks the web portal periodically. Both run
// against a Coordinator created for each attempt and return as soon as the
// attempt is marked failed, the supervisor is canceled or ctx is done.
package probe

import "context"

// Probe watches one liveness signal of a running server.
type Probe interface {
	Name() string
	// Run blocks until the probe reports a failure or the attempt stops.
	// It returns the reported Failure, or nil when the attempt stopped first.
	Run(ctx context.Context, c *Coordinator) error
}
