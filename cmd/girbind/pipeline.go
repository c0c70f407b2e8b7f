package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"girbind/internal/config"
	"girbind/internal/errors"
	"girbind/internal/generation"
	"girbind/internal/logger"
	"girbind/internal/metadata"
	"girbind/internal/synth"
)

// synthesize loads the configured introspection files with their includes
// and synthesizes the namespaces declared by the files themselves. Included
// namespaces only contribute types.
func synthesize(cfg *config.Config) ([]*synth.Namespace, string, error) {
	var searchPaths []string
	for _, gir := range cfg.Input.Gir {
		searchPaths = append(searchPaths, filepath.Dir(gir))
	}
	searchPaths = append(searchPaths, cfg.Input.SearchPaths...)

	reader := metadata.NewReader(cfg.Input.IgnoredElements...)
	repos, err := metadata.NewLocator(reader, searchPaths...).Load(cfg.Input.Gir...)
	if err != nil {
		return nil, "", err
	}

	inputs := map[string]bool{}
	for _, gir := range cfg.Input.Gir {
		repo, err := reader.ReadFile(gir)
		if err != nil {
			return nil, "", err
		}
		for _, ns := range repo.Namespaces {
			inputs[ns.Name] = true
		}
	}

	var all, selected []metadata.Namespace
	for _, repo := range repos {
		for _, ns := range repo.Namespaces {
			all = append(all, ns)
			if inputs[ns.Name] {
				selected = append(selected, ns)
			}
		}
	}
	if len(selected) == 0 {
		return nil, "", errors.New("the configured files declare no namespace")
	}

	primary := cfg.Generate.Primary
	if primary == "" {
		primary = selected[0].Name
	}
	naming := synth.Naming{Primary: primary}
	reg, err := synth.NewRegistry(naming, all...)
	if err != nil {
		return nil, "", err
	}
	builder := synth.NewBuilder(reg, naming)
	builder.SkipUnsupported = cfg.Generate.SkipUnsupported

	var out []*synth.Namespace
	for _, ns := range selected {
		synthesized, err := builder.Namespace(ns)
		if err != nil {
			return nil, "", errors.Wrapf(err, "namespace %s", ns.Name)
		}
		logger.Infow("synthesized namespace", "namespace", ns.Name,
			"classes", len(synthesized.Classes), "interfaces", len(synthesized.Interfaces),
			"records", len(synthesized.Records), "functions", len(synthesized.Functions))
		out = append(out, synthesized)
	}
	return out, primary, nil
}

// generate writes the bindings configured by cfg. Existing output is only
// removed after confirmation read from in, unless force is set.
func generate(cfg *config.Config, force bool, in io.Reader, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	namespaces, primary, err := synthesize(cfg)
	if err != nil {
		return err
	}

	if err := clearOutput(cfg.Generate.Output, force || cfg.Generate.Clean, in, out); err != nil {
		return err
	}
	gen := generation.NewGenerator(cfg.Generate.Package, cfg.Generate.Output)
	gen.Primary = primary
	gen.Headers = cfg.Generate.Headers
	gen.PkgConfig = cfg.Generate.PkgConfig
	for _, ns := range namespaces {
		gen.RegisterNamespace(ns)
	}
	return gen.Generate()
}

// clearOutput empties the output directory before generation. Unless force
// is set the user has to agree to removing existing files.
func clearOutput(path string, force bool, in io.Reader, out io.Writer) error {
	directory, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer directory.Close()

	_, err = directory.Readdirnames(1)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}

	if !force {
		var response string
		fmt.Fprint(out, "Output directory is not empty. Continuation will result in removing all output files. Proceed? [Y/n] ")
		fmt.Fscan(in, &response)
		if strings.ToUpper(response) != "Y" {
			return errors.WithHint(errors.New("explicit agreement was not given"),
				"pass --clean to remove existing output without asking")
		}
	}

	logger.Infow("cleaning output directory", "path", path)
	return os.RemoveAll(path)
}
