package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/sourcehost/host"
	"github.com/reglet-dev/sourcehost/wireformat"
)

func callCommand(g *globals) *cobra.Command {
	var name string
	var partials bool

	command := &cobra.Command{
		Use:   "call [path to module] [export] [json arguments...]",
		Short: "Call one export of a guest",
		Long: "Call one export of a guest. Each argument is parsed as JSON and " +
			"passed as a buffer handle; the result is printed as JSON.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wasm, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			callArgs := make([]any, 0, len(args)-2)
			for i, raw := range args[2:] {
				v, err := wireformat.FromJSON([]byte(raw))
				if err != nil {
					return fmt.Errorf("argument %d: %w", i, err)
				}
				callArgs = append(callArgs, v)
			}

			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			opts := []host.Option{
				host.WithConfig(cfg),
				host.WithLogger(logger),
				host.WithPluginName(name),
			}
			if partials {
				errOut := cmd.ErrOrStderr()
				opts = append(opts, host.WithPartialResultSink(func(_ context.Context, v any) {
					if out, err := wireformat.ToJSON(v); err == nil {
						fmt.Fprintf(errOut, "partial: %s\n", out)
					}
				}))
			}

			ctx := cmd.Context()
			e, err := host.NewExecutor(ctx, opts...)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close(ctx) }()

			p, err := e.Load(ctx, wasm)
			if err != nil {
				return err
			}

			lease, err := p.Call(ctx, args[1], callArgs...)
			if err != nil {
				return err
			}
			defer func() { _ = lease.Release(ctx) }()

			v, err := lease.Value()
			if err != nil {
				return err
			}
			out, err := wireformat.ToJSON(v)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", out)
			return nil
		},
	}

	command.Flags().StringVar(&name, "name", "", "plugin name used in logs (defaults to the file name)")
	command.Flags().BoolVar(&partials, "partials", false, "print partial results to stderr as they arrive")

	return command
}
