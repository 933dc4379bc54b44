// Command sourcehost loads source guests and manages their settings.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reglet-dev/sourcehost/application/config"
	"github.com/reglet-dev/sourcehost/domain/entities"
	domainerrors "github.com/reglet-dev/sourcehost/domain/errors"
	"github.com/reglet-dev/sourcehost/log"
)

var version = "<unknown>"

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath  string
	grantsPath  string
	logLevel    string
	development bool
	jsonErrors  bool
}

// load reads the host configuration, adds the stored grants and builds the
// logger the configuration asks for.
func (g *globals) load() (entities.HostConfig, *zap.Logger, error) {
	var overrides []entities.HostConfigOption
	if g.logLevel != "" {
		overrides = append(overrides, entities.WithLogLevel(g.logLevel))
	}
	cfg, err := config.Load(g.configPath, overrides...)
	if err != nil {
		return entities.HostConfig{}, nil, err
	}
	stored, err := g.grantStore().Load()
	if err != nil {
		return entities.HostConfig{}, nil, err
	}
	if !stored.IsEmpty() {
		grants := cfg.Grants.Clone()
		if grants == nil {
			grants = &entities.GrantSet{}
		}
		grants.Merge(stored)
		cfg.Grants = grants
	}
	logger, err := log.New(cfg.LogLevel, log.WithDevelopment(g.development))
	if err != nil {
		return entities.HostConfig{}, nil, err
	}
	return cfg, logger, nil
}

func configureCLI() *cobra.Command {
	g := &globals{}

	rootCommand := &cobra.Command{
		Use:           "sourcehost",
		Short:         "sourcehost guest runner",
		Long:          "sourcehost - load WebAssembly source guests and call their capabilities",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCommand.AddCommand(inspectCommand(g))
	rootCommand.AddCommand(callCommand(g))
	rootCommand.AddCommand(settingsCommand(g))
	rootCommand.AddCommand(grantsCommand(g))
	rootCommand.AddCommand(configCommand())

	flags := rootCommand.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "path to the host configuration file")
	flags.StringVar(&g.grantsPath, "grants", "", "path to the grants file (default ~/.sourcehost/grants.yaml)")
	flags.StringVar(&g.logLevel, "log-level", "", "override the configured log level")
	flags.BoolVar(&g.development, "dev", false, "log human-readable console lines")
	flags.BoolVar(&g.jsonErrors, "json-errors", false, "report failures as a JSON error detail")

	return rootCommand
}

// reportError writes err for the user, as one JSON object when asked to.
func reportError(w io.Writer, err error, asJSON bool) {
	if asJSON {
		if out, jsonErr := json.Marshal(domainerrors.ToErrorDetail(err)); jsonErr == nil {
			fmt.Fprintf(w, "%s\n", out)
			return
		}
	}
	fmt.Fprintf(w, "%v\n", err)
}

func main() {
	rootCommand := configureCLI()

	if err := rootCommand.Execute(); err != nil {
		asJSON, _ := rootCommand.PersistentFlags().GetBool("json-errors")
		reportError(os.Stderr, err, asJSON)
		os.Exit(1)
	}
}
