package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "qrtctl: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "qrtctl",
		Short: "Talk to a motion-capture server over its real-time protocol",
		Long: `qrtctl connects to a capture server's real-time TCP interface
(default port 22223), issues commands, waits for events and streams
decoded measurement frames.

Examples:
  qrtctl version --host qtm.local
  qrtctl send "GetParameters General"
  qrtctl await capture_started --timeout 1m
  qrtctl stream 3d,6d --frames Frequency:100 --record run.jsonl`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (TOML)")
	flags.StringVar(&opts.host, "host", "", "server host (overrides [server].host)")
	flags.IntVarP(&opts.port, "port", "p", 0, "server port (overrides [server].port)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "overall timeout for one-shot commands")
	flags.StringVar(&opts.logLevel, "log-level", "", "trace|debug|info|warn|error|off")

	rootCmd.AddCommand(
		versionCmd(opts),
		stateCmd(opts),
		sendCmd(opts),
		xmlCmd(opts),
		awaitCmd(opts),
		streamCmd(opts),
		configCmd(opts),
	)
	return rootCmd
}
