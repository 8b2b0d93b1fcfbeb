package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/danmuck/qrtctl/internal/protocol"
	"github.com/danmuck/qrtctl/internal/qrt"
	"github.com/spf13/cobra"
)

var discard = qrt.SinkFunc(func(qrt.Response) {})

func versionCmd(opts *rootOptions) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print client and server versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "qrtctl     %s (%s, %s, %s)\n", version, commit, date, runtime.Version())
			if local {
				return nil
			}

			ctx, cancel := opts.commandContext(cmd.Context())
			defer cancel()
			eng, err := opts.connect(ctx, discard)
			if err != nil {
				return err
			}
			defer eng.Disconnect()

			resp, err := eng.Command(ctx, "QTMVersion")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "server     %s\n", resp.Text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "print only the client version")
	return cmd
}

// stateCmd asks for the last state change. The server answers GetState with
// an event, not a command reply.
func stateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the server's current capture state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.commandContext(cmd.Context())
			defer cancel()
			eng, err := opts.connect(ctx, discard)
			if err != nil {
				return err
			}
			defer eng.Disconnect()

			wait := eng.WaitEvent(protocol.AnyEvent, opts.cfg.Server.EventTimeout.Duration)
			if err := eng.SendCommand("GetState", nil); err != nil {
				wait.Cancel(err)
				return err
			}
			select {
			case res := <-wait.Done():
				if res.Err != nil {
					return res.Err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Event)
				return nil
			case <-ctx.Done():
				wait.Cancel(ctx.Err())
				return ctx.Err()
			}
		},
	}
}

func sendCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "send <command...>",
		Short: "Send one command and print the correlated reply",
		Long: `Send one command and print the correlated reply.

The words are joined with spaces and sent verbatim, for example
  qrtctl send GetParameters 3D 6D`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.commandContext(cmd.Context())
			defer cancel()
			out := cmd.OutOrStdout()
			eng, err := opts.connect(ctx, discard)
			if err != nil {
				return err
			}
			defer eng.Disconnect()

			resp, err := eng.Command(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, resp)
			}
			fmt.Fprintln(out, resp.Text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}

func xmlCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "xml <file|->",
		Short: "Send an XML settings document and print the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			ctx, cancel := opts.commandContext(cmd.Context())
			defer cancel()
			eng, err := opts.connect(ctx, discard)
			if err != nil {
				return err
			}
			defer eng.Disconnect()

			resp, err := eng.XML(ctx, doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			return nil
		},
	}
}

// awaitCmd uses --timeout as the wait deadline instead of the one-shot
// command deadline.
func awaitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "await [event]",
		Short: "Block until the server reports an event",
		Long: `Block until the server reports an event. With no argument any event
matches. Events are named as printed (capture_started, trigger, ...)
or given by number. --timeout bounds the wait and defaults to
[server].event_timeout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wanted := protocol.AnyEvent
			if len(args) == 1 {
				code, err := protocol.ParseEventCode(args[0])
				if err != nil {
					return err
				}
				wanted = code
			}
			timeout := opts.timeout
			if timeout <= 0 {
				timeout = opts.cfg.Server.EventTimeout.Duration
			}

			ctx := cmd.Context()
			eng, err := opts.connect(ctx, discard)
			if err != nil {
				return err
			}
			defer eng.Disconnect()

			code, err := eng.AwaitEvent(ctx, wanted, timeout)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
}

func readInput(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
