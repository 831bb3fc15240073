package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

var (
	ErrSpawn = errors.New("spawning server")
)

type StderrFunc func(ctx context.Context, line string)

type Command struct {
	Path string
	Args []string
	Env  []string // nil inherits the environment of the supervisor
}

// Process is the running server as seen by the Supervisor. Child is the
// only production implementation.
type Process interface {
	Pid() int
	// TakeStdout returns the stdout pipe to the first caller and nil to
	// everyone else.
	TakeStdout() io.ReadCloser
	Kill() error
	Wait() error
}

// Child is a spawned server with captured stdout and stderr. Stderr is
// drained by an internal goroutine so the server never blocks on it.
type Child struct {
	cmd     *exec.Cmd
	started time.Time

	stdoutMx sync.Mutex
	stdout   io.ReadCloser

	stderrWg sync.WaitGroup

	killOnce sync.Once
	killErr  error
	waitOnce sync.Once
	waitErr  error
}

// Spawn starts the process. Errors are wrapped in ErrSpawn. stderrFunc may
// be nil, stderr is drained anyway.
func Spawn(ctx context.Context, proto Command, stderrFunc StderrFunc) (*Child, error) {
	cmd := exec.Command(proto.Path, proto.Args...)
	if proto.Env != nil {
		cmd.Env = append([]string(nil), proto.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	c := &Child{
		cmd:     cmd,
		started: time.Now().UTC(),
		stdout:  stdout,
	}
	c.stderrWg.Go(func() {
		processStderr(ctx, stderr, stderrFunc)
	})
	return c, nil
}

func processStderr(ctx context.Context, stderr io.Reader, stderrFunc StderrFunc) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if stderrFunc != nil {
			stderrFunc(ctx, scanner.Text())
		}
	}
	err := scanner.Err()
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		slog.ErrorContext(ctx, "processing stderr", "error", err)
	}
}

func (c *Child) Pid() int {
	return c.cmd.Process.Pid
}

func (c *Child) Started() time.Time {
	return c.started
}

func (c *Child) TakeStdout() io.ReadCloser {
	c.stdoutMx.Lock()
	defer c.stdoutMx.Unlock()
	stdout := c.stdout
	c.stdout = nil
	return stdout
}

// Kill sends SIGKILL to the server. Only the first call signals the process,
// the others return the same result. Killing a process which already exited
// is not an error.
func (c *Child) Kill() error {
	c.killOnce.Do(func() {
		err := c.cmd.Process.Kill()
		if errors.Is(err, os.ErrProcessDone) {
			err = nil
		}
		c.killErr = err
	})
	return c.killErr
}

// Wait waits for the server to exit and for stderr to be drained. It closes
// the stdout pipe, so any pending read of it returns.
func (c *Child) Wait() error {
	c.waitOnce.Do(func() {
		c.waitErr = c.cmd.Wait()
		c.stderrWg.Wait()
	})
	return c.waitErr
}

// State is nil until Wait returns.
func (c *Child) State() *os.ProcessState {
	return c.cmd.ProcessState
}
