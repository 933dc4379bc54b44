package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/sourcehost/host"
)

func inspectCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [path to module]",
		Short: "Report a guest's exports, imports and capabilities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wasm, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			e, err := host.NewExecutor(ctx, host.WithConfig(cfg), host.WithLogger(logger))
			if err != nil {
				return err
			}
			defer func() { _ = e.Close(ctx) }()

			report, err := e.Inspect(ctx, wasm)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if len(report.Unresolved) > 0 {
				return fmt.Errorf("%d unresolved imports", len(report.Unresolved))
			}
			return nil
		},
	}
}
