// Command girbind generates Go bindings for GObject libraries from their
// introspection files.
package main

import (
	"fmt"
	"io"
	"os"

	"girbind/internal/config"
	"girbind/internal/errors"
	"girbind/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}

// app is the state shared by the commands of one invocation.
type app struct {
	configPath string
	viper      *viper.Viper
	cfg        *config.Config
}

// Flags bound to configuration keys, when the running command defines them
var flagKeys = map[string]string{
	"package":          "generate.package",
	"output":           "generate.output",
	"primary":          "generate.primary",
	"header":           "generate.headers",
	"pkg-config":       "generate.pkg_config",
	"skip-unsupported": "generate.skip_unsupported",
	"clean":            "generate.clean",
	"search-path":      "input.search_paths",
	"ignore":           "input.ignored_elements",
	"json":             "log.json",
	"debug":            "log.debug",
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "girbind",
		Short: "Generate Go bindings from GObject introspection files",
		Long: `girbind reads GObject introspection (GIR) files and writes a Go package
of cgo bindings: proxies for classes, interfaces and records, enum types,
callback types, listener interfaces for signals and the trampolines native
code calls back into.

Configuration is read from girbind.toml, GIRBIND_* environment variables
and flags, in increasing precedence.

Examples:
  girbind init                                   # Write girbind.toml with defaults
  girbind generate Demo-1.0.gir -o demo -p demo  # Generate package demo into ./demo
  girbind generate --watch                       # Regenerate when inputs change
  girbind dump Demo-1.0.gir                      # Print synthesized records as YAML`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
		PersistentPostRun: func(*cobra.Command, []string) { logger.Cleanup() },
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: ./"+config.FileName+" if present)")
	root.PersistentFlags().Bool("json", false, "Log as JSON")
	root.PersistentFlags().Bool("debug", false, "Log debug messages")

	root.AddCommand(a.generateCmd(), a.dumpCmd(), a.initCmd())
	return root
}

// load reads the configuration for cmd and initializes logging.
func (a *app) load(cmd *cobra.Command, args []string) error {
	a.viper = config.NewViper()
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := a.viper.BindPFlag(key, f); err != nil {
				return errors.Wrapf(err, "failed to bind flag %s", flag)
			}
		}
	}
	if len(args) > 0 {
		a.viper.Set("input.gir", args)
	}

	if a.configPath == "" {
		a.configPath = config.Find()
	}
	cfg, err := config.Load(a.viper, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return logger.Initialize(cfg.Log.JSON, cfg.Log.Debug)
}

// reload rereads the configuration file after it changed.
func (a *app) reload() error {
	cfg, err := config.Load(a.viper, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}
