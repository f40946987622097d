package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/roots/core/protocol"
)

func newEvalCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "eval <script>...",
		Short: "Evaluate a script given on the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, strings.Join(args, " "))
		},
	}
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Evaluate a script file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read script: %w", err)
			}
			return execute(cmd, opts, string(source))
		},
	}
}

// execute starts a hub, evaluates source on its script service and waits
// for the hub to exit. The script's result is printed one value per line.
func execute(cmd *cobra.Command, opts *rootOptions, source string) error {
	h, shutdownTimeout, err := opts.buildHub(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.metricsAddr != "" {
		stop, err := serveMetrics(opts.metricsAddr, h)
		if err != nil {
			return err
		}
		defer stop()
	}

	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("hub start: %w", err)
	}

	con := newConsole()
	if _, err := h.Install("console", con); err != nil {
		h.Shutdown()
		return err
	}
	if err := con.eval(h, source); err != nil {
		h.Shutdown()
		return err
	}

	<-h.Done()
	if err := h.AwaitTimeout(shutdownTimeout); err != nil {
		return err
	}

	if result, ok := con.result(); ok {
		if result.IsError() {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", result.ErrorValue())
		} else {
			for _, arg := range result.Args() {
				s, _ := protocol.ArgString([]any{arg}, 0)
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
		}
	}

	if code := h.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}
