package probe

import (
	"context"
	"log/slog"
	"time"
)

// Checker performs a single health check of the web portal.
type Checker interface {
	Check(ctx context.Context) error
}

type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error {
	return f(ctx)
}

// HTTPProbe checks the web portal every interval once the server is ready.
type HTTPProbe struct {
	checker  Checker
	interval time.Duration
}

func NewHTTPProbe(checker Checker, interval time.Duration) HTTPProbe {
	return HTTPProbe{
		checker:  checker,
		interval: interval,
	}
}

func (HTTPProbe) Name() string {
	return "http"
}

// Run never checks before readiness. The first failed check is reported as
// KindWebPortal, there is no retry.
func (p HTTPProbe) Run(ctx context.Context, c *Coordinator) error {
	if !c.WaitReady(ctx) {
		return nil
	}

	for {
		if c.Stopped() {
			return nil
		}
		if !c.Sleep(ctx, p.interval) {
			return nil
		}
		err := p.checker.Check(ctx)
		if err == nil {
			slog.DebugContext(ctx, "web portal is alive")
			continue
		}
		// a request aborted by the end of the attempt is not a failure
		if c.Stopped() || ctx.Err() != nil {
			return nil
		}
		f := Failure{Kind: KindWebPortal, Probe: p.Name(), Err: err}
		c.ReportFailure(f)
		return f
	}
}
