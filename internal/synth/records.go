// Package synth turns raw declarations into operation records ready for
// code generation.
package synth

import (
	"strings"

	"girbind/internal/errors"
	"girbind/internal/types"
)

// OperationKind tells the back-end how an operation is invoked.
type OperationKind int

const (
	KindFunction OperationKind = iota
	KindMethod
	KindConstructor
	KindPropertyGet
	KindPropertySet
	KindSignalConnect
	KindSignalDisconnect
	KindListenerAdd
	KindListenerRemove
	// Invoked by native code
	KindCallback
	KindSignalHandler
)

// Inbound reports whether native code calls into the operation.
func (k OperationKind) Inbound() bool {
	return k == KindCallback || k == KindSignalHandler
}

// Operation is one synthesized function, method or trampoline.
type Operation struct {
	Kind   OperationKind
	Name   string
	Symbol string
	Return types.Value
	// All parameters, receiver first when Receiver is set
	Params   []types.Value
	Receiver bool
	Surfaced []int
	// Closure data, destroy notifies and other values hidden from managed code
	Closures []int
	Lengths  []int
	Throws   bool
	Doc      string
	// Path names the declaration in error messages: "Gtk.Widget.show"
	Path string
}

// partition fills Surfaced, Closures and Lengths from Params.
func (op *Operation) partition() {
	op.Surfaced, op.Closures, op.Lengths = nil, nil, nil
	for i, p := range op.Params {
		switch {
		case p.IsAuxiliary(), p.Kind() == types.KindParamSpec:
			op.Closures = append(op.Closures, i)
		case p.IsLength():
			op.Lengths = append(op.Lengths, i)
		default:
			op.Surfaced = append(op.Surfaced, i)
		}
	}
}

// SurfacedParams returns the parameters visible in the managed signature.
func (op *Operation) SurfacedParams() []types.Value {
	out := make([]types.Value, 0, len(op.Surfaced))
	for _, i := range op.Surfaced {
		out = append(out, op.Params[i])
	}
	return out
}

// Signature returns the wire signature built from surfaced parameters and the return value.
func (op *Operation) Signature() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, i := range op.Surfaced {
		if op.Receiver && i == 0 {
			continue
		}
		b.WriteString(op.Params[i].Signature())
	}
	b.WriteByte(')')
	b.WriteString(op.Return.Signature())
	return b.String()
}

// Transforms computes the conversions of every parameter and of the return
// value. Outbound operations convert parameters to native and the return value
// to managed; inbound operations do the opposite.
func (op *Operation) Transforms() ([]types.Transform, types.Transform, error) {
	inbound := op.Kind.Inbound()
	params := make([]types.Transform, len(op.Params))
	for i, p := range op.Params {
		t, err := types.Convert(p, !inbound)
		if err != nil {
			return nil, types.Transform{}, errors.Wrapf(err, "%s(%s)", op.Path, p.Name)
		}
		params[i] = t
	}

	var ret types.Transform
	if !op.Return.IsVoid() {
		t, err := types.Convert(op.Return, inbound)
		if err != nil {
			return nil, types.Transform{}, errors.Wrapf(err, "%s(return)", op.Path)
		}
		ret = t
	}
	return params, ret, nil
}

// Property is a synthesized object property.
type Property struct {
	Name     string
	Value    types.Value
	Readable bool
	Writable bool
	Getter   *Operation
	Setter   *Operation
	Notify   *Signal
}

// Signal is a synthesized signal with its listener bookkeeping operations.
type Signal struct {
	// Managed name, "clicked" or "onLabelChanged"
	Name string
	// Native detailed signal name, "clicked" or "notify::label"
	NativeName string
	// Listener interface name, "ClickedListener"
	Listener string
	When     string
	// Set for property change notifications
	Property *Property
	Handler  *Operation

	Connect    *Operation
	Disconnect *Operation
	Add        *Operation
	Remove     *Operation
	Doc        string
}

// Callback is a synthesized callback type.
type Callback struct {
	Name       string
	Managed    string
	Native     string
	Trampoline *Operation
	Doc        string
}

// Class is a synthesized class or interface.
type Class struct {
	Name         string
	Managed      string
	Native       string
	Parent       string
	SymbolPrefix string
	GlibTypeName string
	GetType      string
	IsInterface  bool
	Abstract     bool
	Implements   []string
	Value        types.Value

	Constructors []*Operation
	Methods      []*Operation
	Functions    []*Operation
	Properties   []*Property
	Signals      []*Signal
	Doc          string
}

// EnumMember is one constant of a synthesized enum.
type EnumMember struct {
	Name        string
	CIdentifier string
	Value       int64
	Nick        string
}

// Enum is a synthesized enumeration or bitfield.
type Enum struct {
	Name     string
	Managed  string
	Native   string
	Bitfield bool
	HasNick  bool
	Members  []EnumMember
	Doc      string
}

// Record is a synthesized opaque record.
type Record struct {
	Name         string
	Managed      string
	Native       string
	CopyFunc     string
	FreeFunc     string
	Constructors []*Operation
	Methods      []*Operation
	Functions    []*Operation
	Doc          string
}

// Namespace is everything synthesized for one introspection namespace.
type Namespace struct {
	Name             string
	Version          string
	SymbolPrefix     string
	IdentifierPrefix string
	SharedLibrary    string
	Classes          []*Class
	Interfaces       []*Class
	Records          []*Record
	Enums            []*Enum
	Callbacks        []*Callback
	Functions        []*Operation
}

// Operations returns every operation of the namespace in declaration order.
func (ns *Namespace) Operations() []*Operation {
	var ops []*Operation
	ops = append(ops, ns.Functions...)
	for _, cb := range ns.Callbacks {
		if cb.Trampoline != nil {
			ops = append(ops, cb.Trampoline)
		}
	}
	for _, classes := range [][]*Class{ns.Classes, ns.Interfaces} {
		for _, c := range classes {
			ops = append(ops, c.Constructors...)
			ops = append(ops, c.Methods...)
			ops = append(ops, c.Functions...)
			for _, p := range c.Properties {
				if p.Getter != nil {
					ops = append(ops, p.Getter)
				}
				if p.Setter != nil {
					ops = append(ops, p.Setter)
				}
				if p.Notify != nil {
					ops = append(ops, p.Notify.Operations()...)
				}
			}
			for _, s := range c.Signals {
				ops = append(ops, s.Operations()...)
			}
		}
	}
	for _, r := range ns.Records {
		ops = append(ops, r.Constructors...)
		ops = append(ops, r.Methods...)
		ops = append(ops, r.Functions...)
	}
	return ops
}

// Operations returns the handler and listener operations of the signal.
func (s *Signal) Operations() []*Operation {
	return []*Operation{s.Handler, s.Connect, s.Disconnect, s.Add, s.Remove}
}
