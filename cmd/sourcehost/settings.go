package main

import (
	"encoding/csv"
	"fmt"
	"text/tabwriter"

	"github.com/jszwec/csvutil"
	"github.com/spf13/cobra"

	"github.com/reglet-dev/sourcehost/infrastructure/settings"
	"github.com/reglet-dev/sourcehost/wireformat"
)

func settingsCommand(g *globals) *cobra.Command {
	command := &cobra.Command{
		Use:   "settings",
		Short: "Read and write the settings store named in the configuration",
	}
	command.AddCommand(settingsGetCommand(g))
	command.AddCommand(settingsSetCommand(g))
	command.AddCommand(settingsListCommand(g))
	return command
}

func openSettings(cmd *cobra.Command, g *globals) (*settings.Store, error) {
	cfg, logger, err := g.load()
	if err != nil {
		return nil, err
	}
	return settings.Open(cmd.Context(),
		settings.WithLogger(logger),
		settings.WithBackend(settings.BackendFor(cfg.Settings)))
}

func settingsGetCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print one setting as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSettings(cmd, g)
			if err != nil {
				return err
			}
			v, ok, err := store.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("setting %q not found", args[0])
			}
			out, err := wireformat.ToJSON(settings.ToWire(v))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", out)
			return nil
		},
	}
}

func settingsSetCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "set [key] [json value]",
		Short: "Store one setting; null deletes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := wireformat.FromJSON([]byte(args[1]))
			if err != nil {
				return err
			}
			v, err = settingValue(v)
			if err != nil {
				return err
			}
			store, err := openSettings(cmd, g)
			if err != nil {
				return err
			}
			return store.Set(cmd.Context(), args[0], v)
		},
	}
}

// settingValue maps a JSON object onto the string map the store decomposes
// into composite arrays.
func settingValue(v any) (any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return v, nil
	}
	m := make(map[string]string, len(obj))
	for k, item := range obj {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: object value %q is %T", settings.ErrInvalidValue, k, item)
		}
		m[k] = s
	}
	return m, nil
}

type settingRow struct {
	Key   string `csv:"key"`
	Kind  string `csv:"kind"`
	Value string `csv:"value"`
}

func settingsListCommand(g *globals) *cobra.Command {
	var asCSV bool

	command := &cobra.Command{
		Use:   "list",
		Short: "List every stored key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSettings(cmd, g)
			if err != nil {
				return err
			}

			entries := store.List()
			rows := make([]settingRow, 0, len(entries))
			for _, e := range entries {
				out, err := wireformat.ToJSON(settings.ToWire(e.Value))
				if err != nil {
					return err
				}
				rows = append(rows, settingRow{Key: e.Key, Kind: e.Kind.String(), Value: string(out)})
			}

			if asCSV {
				csvWriter := csv.NewWriter(cmd.OutOrStdout())
				defer csvWriter.Flush()

				encoder := csvutil.NewEncoder(csvWriter)
				if len(rows) == 0 {
					return encoder.EncodeHeader(settingRow{})
				}
				return encoder.Encode(rows)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Key, r.Kind, r.Value)
			}
			return w.Flush()
		},
	}

	command.Flags().BoolVar(&asCSV, "csv", false, "write CSV with a header row")

	return command
}
