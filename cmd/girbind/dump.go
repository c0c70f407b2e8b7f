package main

import (
	"girbind/internal/errors"
	"girbind/internal/synth"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Summaries of synthesized records, shaped for reading rather than for
// round trips.
type (
	dumpedNamespace struct {
		Name          string            `yaml:"name"`
		Version       string            `yaml:"version"`
		SharedLibrary string            `yaml:"shared_library,omitempty"`
		Classes       []dumpedClass     `yaml:"classes,omitempty"`
		Interfaces    []dumpedClass     `yaml:"interfaces,omitempty"`
		Records       []dumpedRecord    `yaml:"records,omitempty"`
		Enums         []dumpedEnum      `yaml:"enums,omitempty"`
		Callbacks     []dumpedOperation `yaml:"callbacks,omitempty"`
		Functions     []dumpedOperation `yaml:"functions,omitempty"`
	}

	dumpedClass struct {
		Name         string            `yaml:"name"`
		Managed      string            `yaml:"managed"`
		Native       string            `yaml:"native"`
		Parent       string            `yaml:"parent,omitempty"`
		Constructors []dumpedOperation `yaml:"constructors,omitempty"`
		Methods      []dumpedOperation `yaml:"methods,omitempty"`
		Functions    []dumpedOperation `yaml:"functions,omitempty"`
		Properties   []dumpedProperty  `yaml:"properties,omitempty"`
		Signals      []dumpedSignal    `yaml:"signals,omitempty"`
	}

	dumpedRecord struct {
		Name      string            `yaml:"name"`
		Managed   string            `yaml:"managed"`
		Native    string            `yaml:"native"`
		Copy      string            `yaml:"copy,omitempty"`
		Free      string            `yaml:"free,omitempty"`
		Methods   []dumpedOperation `yaml:"methods,omitempty"`
		Functions []dumpedOperation `yaml:"functions,omitempty"`
	}

	dumpedEnum struct {
		Name     string         `yaml:"name"`
		Managed  string         `yaml:"managed"`
		Bitfield bool           `yaml:"bitfield,omitempty"`
		Members  []dumpedMember `yaml:"members"`
	}

	dumpedMember struct {
		Name  string `yaml:"name"`
		Value int64  `yaml:"value"`
		Nick  string `yaml:"nick,omitempty"`
	}

	dumpedOperation struct {
		Name      string `yaml:"name"`
		Symbol    string `yaml:"symbol"`
		Signature string `yaml:"signature"`
		Throws    bool   `yaml:"throws,omitempty"`
	}

	dumpedProperty struct {
		Name      string `yaml:"name"`
		Signature string `yaml:"signature"`
		Readable  bool   `yaml:"readable"`
		Writable  bool   `yaml:"writable"`
	}

	dumpedSignal struct {
		Name     string `yaml:"name"`
		Native   string `yaml:"native"`
		Listener string `yaml:"listener"`
		When     string `yaml:"when,omitempty"`
		Handler  string `yaml:"handler"`
	}
)

func (a *app) dumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [gir files...]",
		Short: "Print synthesized records as YAML",
		Long: `Print what the generator would bind, without writing any file: classes
with their methods, properties and signals, records, enums, callbacks and
functions, each operation with its wire signature.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			namespaces, _, err := synthesize(a.cfg)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(dumpNamespaces(namespaces)); err != nil {
				return errors.Wrap(err, "failed to encode records")
			}
			return enc.Close()
		},
	}
	flags := cmd.Flags()
	flags.String("primary", "", "Namespace whose types keep unprefixed names")
	flags.StringSlice("search-path", nil, "Directory searched for included namespaces")
	flags.StringSlice("ignore", nil, "c:identifier or c:type of an element to leave out")
	flags.Bool("skip-unsupported", true, "Leave out declarations with values that cannot be converted")
	return cmd
}

func dumpNamespaces(namespaces []*synth.Namespace) []dumpedNamespace {
	var out []dumpedNamespace
	for _, ns := range namespaces {
		d := dumpedNamespace{
			Name:          ns.Name,
			Version:       ns.Version,
			SharedLibrary: ns.SharedLibrary,
			Functions:     dumpOperations(ns.Functions),
		}
		for _, c := range ns.Classes {
			d.Classes = append(d.Classes, dumpClass(c))
		}
		for _, c := range ns.Interfaces {
			d.Interfaces = append(d.Interfaces, dumpClass(c))
		}
		for _, r := range ns.Records {
			d.Records = append(d.Records, dumpedRecord{
				Name: r.Name, Managed: r.Managed, Native: r.Native, Copy: r.CopyFunc, Free: r.FreeFunc,
				Methods:   dumpOperations(append(append([]*synth.Operation{}, r.Constructors...), r.Methods...)),
				Functions: dumpOperations(r.Functions),
			})
		}
		for _, e := range ns.Enums {
			enum := dumpedEnum{Name: e.Name, Managed: e.Managed, Bitfield: e.Bitfield}
			for _, m := range e.Members {
				enum.Members = append(enum.Members, dumpedMember{Name: m.Name, Value: m.Value, Nick: m.Nick})
			}
			d.Enums = append(d.Enums, enum)
		}
		for _, cb := range ns.Callbacks {
			if cb.Trampoline != nil {
				d.Callbacks = append(d.Callbacks, dumpOperation(cb.Trampoline))
			}
		}
		out = append(out, d)
	}
	return out
}

func dumpClass(c *synth.Class) dumpedClass {
	d := dumpedClass{
		Name:         c.Name,
		Managed:      c.Managed,
		Native:       c.Native,
		Parent:       c.Parent,
		Constructors: dumpOperations(c.Constructors),
		Methods:      dumpOperations(c.Methods),
		Functions:    dumpOperations(c.Functions),
	}
	for _, p := range c.Properties {
		d.Properties = append(d.Properties, dumpedProperty{
			Name: p.Name, Signature: p.Value.Signature(), Readable: p.Readable, Writable: p.Writable,
		})
	}
	for _, s := range c.Signals {
		d.Signals = append(d.Signals, dumpedSignal{
			Name: s.Name, Native: s.NativeName, Listener: s.Listener, When: s.When, Handler: s.Handler.Signature(),
		})
	}
	return d
}

func dumpOperations(ops []*synth.Operation) []dumpedOperation {
	var out []dumpedOperation
	for _, op := range ops {
		out = append(out, dumpOperation(op))
	}
	return out
}

func dumpOperation(op *synth.Operation) dumpedOperation {
	return dumpedOperation{Name: op.Name, Symbol: op.Symbol, Signature: op.Signature(), Throws: op.Throws}
}
