package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"

	"github.com/CZERTAINLY/sunshine-supervisor/internal/log"
	"github.com/CZERTAINLY/sunshine-supervisor/internal/model"
	"github.com/CZERTAINLY/sunshine-supervisor/internal/service"

	"github.com/spf13/cobra"
)

var (
	config = model.DefaultConfig()
)

func main() {
	rootCmd.Flags().StringVar(&config.Binary, "binary", config.Binary, "server executable to supervise")
	rootCmd.Flags().DurationVar(&config.Backoff, "backoff", config.Backoff, "pause before the server is restarted")
	rootCmd.Flags().DurationVar(&config.ProbeInterval, "probe-interval", config.ProbeInterval, "pause between two web portal probes")
	rootCmd.Flags().DurationVar(&config.ProbeTimeout, "probe-timeout", config.ProbeTimeout, "timeout of a single web portal probe")
	rootCmd.Flags().DurationVar(&config.JoinTimeout, "join-timeout", config.JoinTimeout, "how long to wait for probes after the server is killed")
	rootCmd.Flags().BoolVar(&config.Verbose, "verbose", false, "verbose logging, includes the server output")

	// never print messages
	rootCmd.SilenceErrors = true
	rootCmd.Version = version()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	// the first signal cancels, the next one gets the default behavior
	context.AfterFunc(ctx, stop)

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("supervisor failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "supervisor [HOST] [PORT]",
	Short: "Runs the sunshine server and restarts it when it stops working",
	Long: `Runs the sunshine server and restarts it when it stops working.

The server is considered broken when it reports the NvFBC cleanup error,
closes its output or when its web portal on HOST:PORT does not answer with
200 OK. HOST defaults to localhost and may include a scheme, like
https://localhost. PORT defaults to 47990.`,
	Args:         cobra.MaximumNArgs(2),
	SilenceUsage: true,
	PreRunE:      initSupervisor,
	RunE:         doRun,
}

func doRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("supervisor",
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	supervisor, err := service.New(config)
	if err != nil {
		return err
	}

	err = supervisor.Do(ctx)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "supervisor stopped", "attempts", supervisor.Attempts())
	return nil
}

func initSupervisor(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		config.Host = args[0]
	}
	if len(args) > 1 {
		port, err := model.ParsePort(args[1])
		if err != nil {
			return err
		}
		config.Port = port
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	slog.SetDefault(log.New(os.Stderr, config.Verbose))

	probeURL, _ := config.ProbeURL()
	slog.Debug("supervisor run", "binary", config.Binary, "probeURL", probeURL.String())
	slog.Debug("supervisor run", "config", config)
	return nil
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "version info not available"
	}

	var sb strings.Builder
	sb.WriteString(info.Main.Version)
	fmt.Fprintf(&sb, " (%s", info.GoVersion)
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			fmt.Fprintf(&sb, ", commit %s", s.Value)
		case "vcs.time":
			fmt.Fprintf(&sb, ", date %s", s.Value)
		case "vcs.modified":
			if s.Value == "true" {
				sb.WriteString(", dirty")
			}
		}
	}
	sb.WriteString(")")
	return sb.String()
}
