package service

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/CZERTAINLY/sunshine-supervisor/internal/log"
	"github.com/CZERTAINLY/sunshine-supervisor/internal/model"
	"github.com/CZERTAINLY/sunshine-supervisor/internal/probe"
)

// SpawnFunc starts a new server process.
type SpawnFunc func(ctx context.Context) (Process, error)

type Supervisor struct {
	spawn       SpawnFunc
	probes      []probe.Probe
	backoff     time.Duration
	joinTimeout time.Duration
	canceled    *probe.Latch
	attempts    atomic.Int64

	shutdownOnce sync.Once
}

// New returns a Supervisor running cfg.Binary with the log and the web
// portal probes.
func New(cfg model.Config) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	probeURL, err := cfg.ProbeURL()
	if err != nil {
		return nil, err
	}

	cmd := Command{Path: cfg.Binary}
	s := &Supervisor{
		spawn: func(ctx context.Context) (Process, error) {
			return Spawn(ctx, cmd, logStderr)
		},
		probes: []probe.Probe{
			probe.NewLogProbe(logStdout),
			probe.NewHTTPProbe(probe.NewHTTPChecker(probeURL, cfg.ProbeTimeout), cfg.ProbeInterval),
		},
		backoff:     cfg.Backoff,
		joinTimeout: cfg.JoinTimeout,
		canceled:    probe.NewLatch(),
	}
	return s, nil
}

// WithSpawner replaces the function starting the server.
// This method exists for a unit testing only.
func (s *Supervisor) WithSpawner(spawn SpawnFunc) *Supervisor {
	s.spawn = spawn
	return s
}

// WithProbes replaces the probes run for every attempt.
// This method exists for a unit testing only.
func (s *Supervisor) WithProbes(probes ...probe.Probe) *Supervisor {
	s.probes = probes
	return s
}

// Attempts returns how many times the server was spawned.
func (s *Supervisor) Attempts() int {
	return int(s.attempts.Load())
}

// Do runs the restart loop until ctx is canceled.
//
// Every attempt spawns the server, runs the probes against a fresh
// probe.Coordinator and waits for the first failure. Then the attempt is
// marked failed, the server killed and waited for, and the probes joined.
// Unless canceled, the next attempt starts after the backoff.
//
// Returns nil on cancellation, or an error wrapping ErrSpawn when the server
// can't be started.
func (s *Supervisor) Do(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.canceled.Set()
	})
	defer stop()
	if ctx.Err() != nil {
		s.canceled.Set()
	}

	for {
		if s.canceled.IsSet() {
			s.logShutdown(ctx)
			return nil
		}

		failure, err := s.attempt(ctx)
		if err != nil {
			return err
		}
		if s.canceled.IsSet() {
			s.logShutdown(ctx)
			return nil
		}

		slog.WarnContext(ctx, "server failed: restarting",
			"kind", failure.Kind,
			"reason", failure.Error(),
			"backoff", s.backoff.String(),
		)
		timer := time.NewTimer(s.backoff)
		select {
		case <-timer.C:
		case <-s.canceled.Done():
			timer.Stop()
			s.logShutdown(ctx)
			return nil
		}
	}
}

func (s *Supervisor) attempt(ctx context.Context) (probe.Failure, error) {
	n := s.attempts.Add(1)
	ctx = log.ContextAttrs(ctx, slog.Group("attempt",
		slog.Int64("n", n),
		slog.String("id", uuid.NewString()),
	))

	proc, err := s.spawn(ctx)
	if err != nil {
		return probe.Failure{}, err
	}
	slog.InfoContext(ctx, "server started", "pid", proc.Pid())

	coord := probe.NewCoordinator(proc.TakeStdout(), s.canceled)
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the first probe giving up stops the others
	g, gctx := errgroup.WithContext(probeCtx)
	for _, p := range s.probes {
		pctx := log.ContextAttrs(gctx, slog.String("probe", p.Name()))
		g.Go(func() error {
			return p.Run(pctx, coord)
		})
	}

	var failure probe.Failure
	select {
	case failure = <-coord.Failures():
		slog.ErrorContext(ctx, "server failure detected",
			"kind", failure.Kind,
			"probe", failure.Probe,
			"error", failure.Err,
		)
	case <-s.canceled.Done():
	}
	if s.canceled.IsSet() {
		s.logShutdown(ctx)
	}

	coord.MarkFailed()
	cancel()
	if err := proc.Kill(); err != nil {
		slog.ErrorContext(ctx, "killing server", "error", err)
	}
	if err := proc.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			slog.InfoContext(ctx, "server exited", "state", exitErr.String())
		} else {
			slog.ErrorContext(ctx, "waiting for server termination", "error", err)
		}
	}

	s.join(ctx, g)
	return failure, nil
}

// join waits for the probes at most joinTimeout. A probe stuck past the
// timeout is left behind.
func (s *Supervisor) join(ctx context.Context, g *errgroup.Group) {
	done := make(chan struct{})
	go func() {
		if err := g.Wait(); err != nil {
			slog.DebugContext(ctx, "probes finished", "error", err)
		}
		close(done)
	}()

	timer := time.NewTimer(s.joinTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		slog.WarnContext(ctx, "probes did not finish in time", "timeout", s.joinTimeout.String())
	}
}

// logShutdown logs the shutdown once, whichever path observes it first.
func (s *Supervisor) logShutdown(ctx context.Context) {
	s.shutdownOnce.Do(func() {
		slog.InfoContext(ctx, "shutdown requested")
	})
}

func logStdout(ctx context.Context, line string) {
	slog.DebugContext(ctx, "server output", "stream", "stdout", "line", line)
}

func logStderr(ctx context.Context, line string) {
	slog.DebugContext(ctx, "server output", "stream", "stderr", "line", line)
}
