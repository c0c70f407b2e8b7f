package main

import (
	"context"
	"os"
	"os/signal"

	"girbind/internal/config"
	"girbind/internal/logger"

	"github.com/spf13/cobra"
)

func (a *app) generateCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "generate [gir files...]",
		Short: "Generate bindings",
		Long: `Generate a Go package of cgo bindings for the given introspection files.

Included namespaces are looked up in the directories of the inputs and in
the configured search paths; they contribute types but no bindings.

With --watch the bindings are regenerated whenever an input file or the
config file changes, until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := generate(a.cfg, false, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.watch(ctx)
		},
	}
	flags := cmd.Flags()
	flags.StringP("package", "p", "", "Name of the generated package")
	flags.StringP("output", "o", "", "Directory the package is written to")
	flags.String("primary", "", "Namespace whose functions keep unprefixed names")
	flags.StringSlice("header", nil, "Header included by the generated files")
	flags.StringSlice("pkg-config", nil, "pkg-config package linked by the generated files")
	flags.StringSlice("search-path", nil, "Directory searched for included namespaces")
	flags.StringSlice("ignore", nil, "c:identifier or c:type of an element to leave out")
	flags.Bool("skip-unsupported", true, "Leave out declarations with values that cannot be converted")
	flags.Bool("clean", false, "Remove existing output without asking")
	flags.BoolVarP(&watch, "watch", "w", false, "Regenerate when inputs change")
	return cmd
}

// watch regenerates the bindings after each change of the inputs. Failed
// runs are logged and the previous output is kept.
func (a *app) watch(ctx context.Context) error {
	paths := append([]string{}, a.cfg.Input.Gir...)
	if a.configPath != "" {
		paths = append(paths, a.configPath)
	}
	w, err := config.NewWatcher(paths...)
	if err != nil {
		return err
	}

	logger.Infow("watching for changes", "files", len(paths))
	return w.Run(ctx, func() {
		if err := a.reload(); err != nil {
			logger.Errorw("failed to reload config", "error", err)
			return
		}
		// Output written by the previous run is ours to replace
		if err := generate(a.cfg, true, nil, nil); err != nil {
			logger.Errorw("generation failed", "error", err)
			return
		}
		logger.Infow("regenerated bindings", "output", a.cfg.Generate.Output)
	})
}
