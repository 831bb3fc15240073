package service

// Package service runs the sunshine server and restarts it when it breaks.
//
// Overview
// The Supervisor owns the restart loop. Every iteration is one attempt: it
// spawns a Child, hands its stdout to a fresh probe.Coordinator and starts
// all probes. The first reported probe.Failure ends the attempt. The
// attempt is marked failed, the server killed and waited for, the probes
// joined, and after a backoff the next attempt starts.
//
// Child is a thin wrapper around os/exec:
//   - starts the process
//   - exposes stdout to exactly one reader
//   - drains stderr (extra goroutine) into a callback
//   - kills it with SIGKILL, idempotently
//
// Data flow:
//
//   Supervisor              Child{cmd}            Coordinator        probes
//       |                      |                       |                |
//   attempt -> Spawn() ------->| os/exec.Start         |                |
//       | NewCoordinator(stdout) --------------------->|                |
//       | Run() -------------------------------------------------------->|
//       |                      |                       |<- SignalReady -| log
//       |                      |                       |<- Failure -----| log, http
//       |<------------------------ Failures() ---------|                |
//       | MarkFailed --------------------------------->|--- Stopped --->|
//       | Kill() + Wait() ---->|                       |                |
//       | join (bounded) <-----------------------------------------------|
//
// Invariants:
//   - At most one server process exists at a time.
//   - A server is killed exactly once per attempt.
//   - Only the first failure of an attempt counts, later ones are dropped.
//   - Readiness is signaled at most once per attempt.
//   - Cancellation is observed by the loop, the probes and the backoff.
//   - A spawn error ends the loop, failures of a started server never do.
//
// internal/service/supervisor_test.go is the best source about how the
// Supervisor behaves in time.
