package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/sourcehost/domain/entities"
	"github.com/reglet-dev/sourcehost/infrastructure/grantstore"
	"github.com/reglet-dev/sourcehost/infrastructure/prompter"
)

var errDeclined = errors.New("grants declined")

func grantsCommand(g *globals) *cobra.Command {
	var yes bool

	command := &cobra.Command{
		Use:   "grants",
		Short: "Manage the network and settings grants given to guests",
	}
	command.PersistentFlags().BoolVarP(&yes, "yes", "y", false, "add grants without asking")

	command.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "List the stored grants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			grants, err := g.grantStore().Load()
			if err != nil {
				return err
			}
			for _, line := range prompter.Describe(grants) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	})

	var ports []string
	allowHost := &cobra.Command{
		Use:   "allow-host [host glob...]",
		Short: "Allow requests to matching hosts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return addGrants(cmd, g, yes, &entities.GrantSet{
				Network: &entities.NetworkCapability{Rules: []entities.NetworkRule{
					{Hosts: args, Ports: ports},
				}},
			})
		},
	}
	allowHost.Flags().StringSliceVar(&ports, "ports", []string{"443"}, "ports or ranges (\"8000-9000\", \"*\")")
	command.AddCommand(allowHost)

	var op string
	allowKey := &cobra.Command{
		Use:   "allow-key [key glob...]",
		Short: "Allow settings access to matching keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains([]string{entities.SettingsRead, entities.SettingsWrite, "read-write"}, op) {
				return fmt.Errorf("invalid operation %q", op)
			}
			return addGrants(cmd, g, yes, &entities.GrantSet{
				Settings: &entities.SettingsCapability{Rules: []entities.SettingsRule{
					{Keys: args, Operation: op},
				}},
			})
		},
	}
	allowKey.Flags().StringVar(&op, "op", "read-write", "read, write or read-write")
	command.AddCommand(allowKey)

	command.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Remove every stored grant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.grantStore().Save(&entities.GrantSet{})
		},
	})

	return command
}

func addGrants(cmd *cobra.Command, g *globals, yes bool, add *entities.GrantSet) error {
	store := g.grantStore()
	grants, err := store.Load()
	if err != nil {
		return err
	}

	add = add.Difference(grants)
	if add.IsEmpty() {
		fmt.Fprintln(cmd.OutOrStdout(), "already granted")
		return nil
	}
	if !yes {
		ok, err := prompter.NewCliPrompter(cmd.InOrStdin(), cmd.OutOrStdout()).ConfirmGrants(add)
		if err != nil {
			return err
		}
		if !ok {
			return errDeclined
		}
	}

	grants.Merge(add)
	return store.Save(grants)
}

// grantStore opens the file named by --grants, or the default one.
func (g *globals) grantStore() *grantstore.FileStore {
	return grantstore.NewFileStore(grantstore.WithPath(g.grantsPath))
}
