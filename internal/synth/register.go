package synth

import (
	"strings"

	"girbind/internal/errors"
	"girbind/internal/logger"
	"girbind/internal/metadata"
	"girbind/internal/types"
)

// Naming derives managed type names. Types of the primary namespace keep
// their bare name; others are prefixed with their namespace.
type Naming struct {
	Primary string
}

// TypeName returns the managed name of the qualified introspection name.
func (n Naming) TypeName(qualified string) string {
	ns, name, found := strings.Cut(qualified, ".")
	if !found {
		return types.Exported(ns)
	}
	if ns == n.Primary {
		return types.Exported(name)
	}
	return ns + types.Exported(name)
}

// RegisterTypes adds templates for every named type declared in namespaces.
// Fundamental classes and class structures are skipped; fundamental classes
// are registered as ignored so declarations using them are dropped.
func RegisterTypes(reg *types.Registry, naming Naming, namespaces ...metadata.Namespace) error {
	for _, ns := range namespaces {
		for _, c := range ns.Classes {
			full := metadata.FullName(ns.Name, c.Name)
			if c.Fundamental {
				reg.RegisterIgnoredTypes(full)
				continue
			}
			if c.CType == "" {
				logger.Debugw("skipping class without native type", "class", full)
				continue
			}
			reg.Register(types.Object(full, c.CType+"*", naming.TypeName(full)))
		}

		for _, c := range ns.Interfaces {
			full := metadata.FullName(ns.Name, c.Name)
			if c.CType == "" {
				continue
			}
			reg.Register(types.Interface(full, c.CType+"*", naming.TypeName(full)))
		}

		for _, r := range ns.Records {
			if r.IsGTypeStructFor != "" || r.CType == "" {
				continue
			}
			full := metadata.FullName(ns.Name, r.Name)
			copyFunc, freeFunc := recordFuncs(r)
			t := types.Record(full, r.CType+"*", naming.TypeName(full), copyFunc, freeFunc)
			reg.Register(t, types.ObjectArrayOf(t))
		}

		for _, e := range ns.Enums {
			full := metadata.FullName(ns.Name, e.Name)
			managed := naming.TypeName(full)
			if !e.Bitfield {
				t := types.Enum(full, e.CType, managed)
				reg.Register(t, types.ObjectArrayOf(t))
				continue
			}
			members := map[string]int64{}
			for _, m := range e.Members {
				members[m.Name] = m.Value
			}
			t, err := types.Bitfield(full, e.CType, managed, members)
			if errors.Is(err, errors.ErrInvalidBitfield) {
				// Declarations using masks or combined members are left out
				logger.Warnw("ignoring bitfield", "bitfield", full, "error", err.Error())
				reg.RegisterIgnoredTypes(full)
				continue
			}
			if err != nil {
				return err
			}
			reg.Register(t, types.ObjectArrayOf(t))
		}

		for _, cb := range ns.Callbacks {
			full := metadata.FullName(ns.Name, cb.Name)
			reg.Register(types.Callback(full, cb.CIdentifier, naming.TypeName(full)))
		}
	}
	return nil
}

// Looks up the copy and free functions by method name
func recordFuncs(r metadata.Record) (string, string) {
	var copyFunc, freeFunc string
	for _, m := range r.Methods {
		switch m.Name {
		case "copy", "ref":
			if copyFunc == "" || m.Name == "copy" {
				copyFunc = m.CIdentifier
			}
		case "free", "unref":
			if freeFunc == "" || m.Name == "free" {
				freeFunc = m.CIdentifier
			}
		}
	}
	return copyFunc, freeFunc
}

// EnumAliases pairs a registered enum "Foos" with the plain enum "Foo" it
// duplicates. The registered variant resolves to the plain one.
func EnumAliases(namespaces ...metadata.Namespace) map[string]string {
	aliases := map[string]string{}
	for _, ns := range namespaces {
		plain := map[string]bool{}
		for _, e := range ns.Enums {
			if e.GlibTypeName == "" {
				plain[e.Name] = true
			}
		}
		for _, e := range ns.Enums {
			if e.GlibTypeName == "" || !strings.HasSuffix(e.Name, "s") {
				continue
			}
			base := strings.TrimSuffix(e.Name, "s")
			if plain[base] {
				aliases[metadata.FullName(ns.Name, e.Name)] = metadata.FullName(ns.Name, base)
			}
		}
	}
	return aliases
}

// IgnoredTypes lists the fundamental classes declared in namespaces.
func IgnoredTypes(namespaces ...metadata.Namespace) []string {
	var ignored []string
	for _, ns := range namespaces {
		for _, c := range ns.Classes {
			if c.Fundamental {
				ignored = append(ignored, metadata.FullName(ns.Name, c.Name))
			}
		}
	}
	return ignored
}

// NewRegistry builds a registry holding the standard types and every type
// declared in namespaces.
func NewRegistry(naming Naming, namespaces ...metadata.Namespace) (*types.Registry, error) {
	reg := types.NewRegistry()
	if err := RegisterTypes(reg, naming, namespaces...); err != nil {
		return nil, errors.Wrap(err, "failed to register types")
	}
	reg.RegisterEnumAliases(EnumAliases(namespaces...))
	reg.RegisterIgnoredTypes(IgnoredTypes(namespaces...)...)
	return reg, nil
}
