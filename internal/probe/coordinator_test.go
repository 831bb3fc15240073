package probe_test

import (
	"io"
	"strings"
	"testing"
	"testing/synctest"
	"time"

	"github.com/CZERTAINLY/sunshine-supervisor/internal/probe"
	"github.com/stretchr/testify/require"
)

func TestLatch(t *testing.T) {
	t.Parallel()
	l := probe.NewLatch()
	require.False(t, l.IsSet())
	select {
	case <-l.Done():
		t.Fatal("done closed before set")
	default:
	}

	require.True(t, l.Set())
	require.False(t, l.Set())
	require.True(t, l.IsSet())
	<-l.Done()
}

func TestCoordinator(t *testing.T) {
	t.Parallel()

	t.Run("stdout", func(t *testing.T) {
		stdout := io.NopCloser(strings.NewReader("x"))
		c := probe.NewCoordinator(stdout, nil)
		require.Equal(t, stdout, c.TakeStdout())
		require.Nil(t, c.TakeStdout())
	})

	t.Run("ready once", func(t *testing.T) {
		c := probe.NewCoordinator(nil, nil)
		require.True(t, c.SignalReady())
		require.False(t, c.SignalReady())
		<-c.Ready()
		require.True(t, c.WaitReady(t.Context()))
	})

	t.Run("failed", func(t *testing.T) {
		c := probe.NewCoordinator(nil, nil)
		require.False(t, c.Stopped())
		require.True(t, c.MarkFailed())
		require.False(t, c.MarkFailed())
		require.True(t, c.IsFailed())
		require.False(t, c.IsCanceled())
		require.True(t, c.Stopped())
		require.False(t, c.WaitReady(t.Context()))
		// readiness after the stop does not revive the attempt
		c.SignalReady()
		require.False(t, c.WaitReady(t.Context()))
	})

	t.Run("canceled is shared", func(t *testing.T) {
		canceled := probe.NewLatch()
		c1 := probe.NewCoordinator(nil, canceled)
		c2 := probe.NewCoordinator(nil, canceled)
		canceled.Set()
		require.True(t, c1.IsCanceled())
		require.True(t, c2.IsCanceled())
		require.False(t, c1.IsFailed())
		require.False(t, c2.WaitReady(t.Context()))
	})

	t.Run("failures", func(t *testing.T) {
		c := probe.NewCoordinator(nil, nil)
		require.True(t, c.ReportFailure(probe.Failure{Kind: probe.KindNvFBC, Probe: "log"}))
		require.True(t, c.ReportFailure(probe.Failure{Kind: probe.KindWebPortal, Probe: "http"}))
		require.False(t, c.ReportFailure(probe.Failure{Kind: probe.KindEOF, Probe: "log"}))

		first := <-c.Failures()
		require.Equal(t, probe.KindNvFBC, first.Kind)
		require.Equal(t, "log", first.Probe)
		require.NotZero(t, first.At)
		require.EqualError(t, first, "NvFBC")
	})
}

func TestCoordinatorSleep(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		c := probe.NewCoordinator(nil, nil)

		start := time.Now()
		require.True(t, c.Sleep(t.Context(), 10*time.Second))
		require.Equal(t, 10*time.Second, time.Since(start))

		go func() {
			time.Sleep(3 * time.Second)
			c.MarkFailed()
		}()
		start = time.Now()
		require.False(t, c.Sleep(t.Context(), 10*time.Second))
		require.Equal(t, 3*time.Second, time.Since(start))
	})
}

func TestFailure(t *testing.T) {
	t.Parallel()
	f := probe.Failure{Kind: probe.KindWebPortal, Probe: "http", Err: probe.ErrUnhealthy}
	require.EqualError(t, f, "WebPortal: unhealthy response")
	require.ErrorIs(t, f, probe.ErrUnhealthy)
}
