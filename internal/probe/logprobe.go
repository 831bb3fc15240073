package probe

import (
	"bufio"
	"context"
	"log/slog"
	"strings"
)

const (
	ReadyMarker = "Configuration UI available"
	NvFBCMarker = "Unable to cleanup NvFBC"

	maxLineSize = 1024 * 1024
)

// LineFunc receives every line read from the server stdout.
type LineFunc func(ctx context.Context, line string)

// LogProbe reads the server stdout line by line.
type LogProbe struct {
	lineFunc LineFunc
}

// NewLogProbe returns a LogProbe. lineFunc may be nil.
func NewLogProbe(lineFunc LineFunc) LogProbe {
	return LogProbe{lineFunc: lineFunc}
}

func (LogProbe) Name() string {
	return "log"
}

// Run consumes the stdout owned by c. The NvFBC marker is ignored until the
// server is ready. End of the stream is reported as KindEOF unless the
// attempt stopped already.
func (p LogProbe) Run(ctx context.Context, c *Coordinator) error {
	stdout := c.TakeStdout()
	if stdout == nil {
		return p.fail(c, KindEOF, ErrNoStdout)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	ready := false
	for scanner.Scan() {
		if c.Stopped() {
			return nil
		}
		line := scanner.Text()
		if p.lineFunc != nil {
			p.lineFunc(ctx, line)
		}

		switch {
		case !ready && strings.Contains(line, ReadyMarker):
			ready = true
			c.SignalReady()
			slog.InfoContext(ctx, "server is ready")
		case ready && strings.Contains(line, NvFBCMarker):
			return p.fail(c, KindNvFBC, nil)
		case strings.Contains(line, NvFBCMarker):
			slog.DebugContext(ctx, "NvFBC error before readiness: ignored")
		}
	}

	if c.Stopped() {
		return nil
	}
	err := scanner.Err()
	if err != nil {
		slog.DebugContext(ctx, "reading server stdout", "error", err)
	}
	return p.fail(c, KindEOF, err)
}

func (p LogProbe) fail(c *Coordinator, kind Kind, err error) error {
	f := Failure{Kind: kind, Probe: p.Name(), Err: err}
	c.ReportFailure(f)
	return f
}
