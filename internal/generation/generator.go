// Package generation renders synthesized namespaces as a Go package of cgo
// bindings.
//
// One package is produced for all registered namespaces:
//
//	girbind_runtime.go   identity map, closure cells, helpers and C shims
//	girbind_exports.go   destroy and weak-reference notifications
//	<ns>.go              proxies, enums, callback types and outbound calls
//	<ns>_bridge.go       trampolines native code calls back into
//
// cgo forbids C definitions in the preamble of files that export Go
// functions, so exported routines and C shims never share a file.
package generation

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"girbind/internal/errors"
	"girbind/internal/logger"
	"girbind/internal/synth"
	"girbind/internal/types"

	"github.com/dave/jennifer/jen"
)

const (
	runtimeFile = "girbind_runtime.go"
	exportsFile = "girbind_exports.go"
)

// Generator collects namespaces and writes their bindings.
type Generator struct {
	PackageName string
	OutputPath  string
	// Namespace whose functions keep unprefixed names
	Primary string
	// Extra headers included by every file
	Headers []string
	// pkg-config packages linked in addition to gobject-2.0
	PkgConfig  []string
	Namespaces []*synth.Namespace

	helpers *types.HelperRegistry
	classes map[string]*synth.Class
	names   scope
}

// NewGenerator creates a generator writing package packageName to outputPath.
func NewGenerator(packageName string, outputPath string) *Generator {
	return &Generator{
		PackageName: packageName,
		OutputPath:  outputPath,
		classes:     map[string]*synth.Class{},
	}
}

// RegisterNamespace adds ns to the generated package. The first registered
// namespace is the primary one unless Primary is set.
func (g *Generator) RegisterNamespace(ns *synth.Namespace) {
	g.Namespaces = append(g.Namespaces, ns)
	if g.Primary == "" {
		g.Primary = ns.Name
	}
	for _, c := range ns.Classes {
		g.classes[c.Managed] = c
	}
	for _, c := range ns.Interfaces {
		g.classes[c.Managed] = c
	}
}

// Files renders every file of the package, keyed by file name.
func (g *Generator) Files() (map[string]*jen.File, error) {
	g.helpers = types.NewHelperRegistry()
	types.RegisterStandardHelpers(g.helpers)
	g.names = scope{}

	externs := append(g.prototypes(), "extern void "+types.DestroyNotify+"(gpointer);")
	files := map[string]*jen.File{}
	for _, ns := range g.Namespaces {
		base := strings.ToLower(ns.Name)

		proxies := g.newFile(externs)
		if err := g.renderNamespace(proxies, ns); err != nil {
			return nil, errors.Wrapf(err, "namespace %s", ns.Name)
		}
		files[base+".go"] = proxies

		bridge := g.newFile(nil)
		if err := g.renderTrampolines(bridge, ns); err != nil {
			return nil, errors.Wrapf(err, "namespace %s", ns.Name)
		}
		files[base+"_bridge.go"] = bridge
	}

	files[runtimeFile] = g.runtime()
	files[exportsFile] = g.exports()
	return files, nil
}

// Generate writes all files to OutputPath.
func (g *Generator) Generate() error {
	files, err := g.Files()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(g.OutputPath, os.ModePerm); err != nil {
		return errors.Wrapf(err, "failed to create %s", g.OutputPath)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(g.OutputPath, name)
		if err := files[name].Save(path); err != nil {
			return errors.Wrapf(err, "failed to write %s", path)
		}
		logger.Debugw("wrote file", "path", path)
	}
	logger.Infow("generated bindings", "package", g.PackageName, "files", len(names), "helpers", g.helpers.Len())
	return nil
}

func (g *Generator) newFile(extra []string) *jen.File {
	f := jen.NewFile(g.PackageName)
	f.HeaderComment("Code generated by girbind. DO NOT EDIT.")
	f.CgoPreamble(g.preamble(extra))
	return f
}

func (g *Generator) preamble(extra []string) string {
	lines := []string{
		"#cgo pkg-config: " + strings.Join(append([]string{"gobject-2.0"}, g.PkgConfig...), " "),
		"#include <stdint.h>",
		"#include <stdlib.h>",
		"#include <string.h>",
		"#include <glib-object.h>",
	}
	for _, h := range g.Headers {
		lines = append(lines, "#include <"+h+">")
	}
	return strings.Join(append(lines, extra...), "\n")
}

// prototypes declares every trampoline so proxies can take their address.
func (g *Generator) prototypes() []string {
	var out []string
	for _, ns := range g.Namespaces {
		for _, op := range ns.Operations() {
			if op.Kind.Inbound() {
				out = append(out, prototype(op))
			}
		}
	}
	return out
}

func prototype(op *synth.Operation) string {
	ret := "void"
	if !op.Return.IsVoid() {
		ret = cSpelling(op.Return.T.Native)
	}
	params := make([]string, len(op.Params))
	for i, p := range op.Params {
		params[i] = cSpelling(p.T.Native)
	}
	if len(params) == 0 {
		params = []string{"void"}
	}
	return "extern " + ret + " " + op.Symbol + "(" + strings.Join(params, ", ") + ");"
}

// cSpelling drops qualifiers cgo does not carry into Go signatures.
func cSpelling(native string) string {
	return strings.TrimPrefix(strings.TrimSpace(native), "const ")
}

// require records the helpers of every transform.
func (g *Generator) require(ts ...types.Transform) {
	for _, t := range ts {
		g.helpers.Require(t.Helpers...)
	}
}
