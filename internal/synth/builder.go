package synth

import (
	"strings"

	"girbind/internal/errors"
	"girbind/internal/logger"
	"girbind/internal/metadata"
	"girbind/internal/stmt"
	"girbind/internal/types"
)

// Builder synthesizes operation records from raw declarations.
type Builder struct {
	Registry *types.Registry
	Naming   Naming
	// Skip operations whose values cannot be converted in the required
	// direction instead of failing
	SkipUnsupported bool
}

// NewBuilder creates a builder resolving types through registry.
func NewBuilder(registry *types.Registry, naming Naming) *Builder {
	return &Builder{Registry: registry, Naming: naming}
}

// Namespace synthesizes every declaration of ns.
func (b *Builder) Namespace(ns metadata.Namespace) (*Namespace, error) {
	res := resolver{registry: b.Registry, namespace: ns.Name}
	out := &Namespace{
		Name:             ns.Name,
		Version:          ns.Version,
		SymbolPrefix:     ns.SymbolPrefixes,
		IdentifierPrefix: ns.IdentifierPrefixes,
		SharedLibrary:    ns.SharedLibrary,
	}
	logger.Debugw("synthesizing namespace", "namespace", ns.Name)

	out.Enums = b.enums(ns)

	for _, cb := range ns.Callbacks {
		c, err := b.callback(res, cb)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out.Callbacks = append(out.Callbacks, c)
		}
	}

	for _, c := range ns.Classes {
		class, err := b.class(res, c, false)
		if err != nil {
			return nil, err
		}
		if class != nil {
			out.Classes = append(out.Classes, class)
		}
	}
	for _, c := range ns.Interfaces {
		class, err := b.class(res, c, true)
		if err != nil {
			return nil, err
		}
		if class != nil {
			out.Interfaces = append(out.Interfaces, class)
		}
	}

	for _, r := range ns.Records {
		record, err := b.record(res, r)
		if err != nil {
			return nil, err
		}
		if record != nil {
			out.Records = append(out.Records, record)
		}
	}

	fns, err := b.operations(res, ns.Name, KindFunction, ns.Functions, nil)
	if err != nil {
		return nil, err
	}
	out.Functions = fns
	return out, nil
}

// operations synthesizes a list of functions, dropping skipped ones.
func (b *Builder) operations(res resolver, owner string, kind OperationKind, fns []metadata.Function, receiver *types.Value) ([]*Operation, error) {
	var ops []*Operation
	for _, fn := range fns {
		op, err := b.operation(res, owner, kind, fn, receiver)
		if err != nil {
			if b.skip(err, owner+"."+fn.Name) {
				continue
			}
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// skip reports whether err only excludes the declaration at path.
func (b *Builder) skip(err error, path string) bool {
	switch {
	case errors.Is(err, errSkipped):
		logger.Debugw("skipping declaration", "declaration", path, "reason", err.Error())
		return true
	case b.SkipUnsupported && errors.Is(err, errors.ErrUnsupportedDirection):
		logger.Warnw("skipping unsupported declaration", "declaration", path, "error", err.Error())
		return true
	}
	return false
}

func (b *Builder) operation(res resolver, owner string, kind OperationKind, fn metadata.Function, receiver *types.Value) (*Operation, error) {
	path := owner + "." + fn.Name
	if !fn.Introspectable {
		return nil, errors.Wrapf(errSkipped, "%s is not introspectable", path)
	}
	if fn.Varargs {
		return nil, errors.Wrapf(errSkipped, "%s takes variable arguments", path)
	}
	if res.ignored(fn.ReturnValue.Type) {
		return nil, errors.Wrapf(errSkipped, "%s returns ignored type %s", path, fn.ReturnValue.Type.Name)
	}

	ret, err := b.returnValue(res, fn.ReturnValue)
	if err != nil {
		return nil, errors.Wrapf(err, "%s(return)", path)
	}
	if receiver != nil && fn.InstanceParameter != nil {
		r := receiver.WithTransfer(types.ParseTransfer(fn.InstanceParameter.Transfer))
		receiver = &r
	}

	params, ret, err := res.parameters(fn.Parameters, receiver, ret, fn.ReturnValue.Type)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}

	op := &Operation{
		Kind:     kind,
		Name:     types.Identifier(fn.Name),
		Symbol:   fn.CIdentifier,
		Return:   ret,
		Params:   params,
		Receiver: receiver != nil,
		Throws:   fn.Throws,
		Doc:      fn.Doc,
		Path:     path,
	}
	if kind == KindCallback {
		op.Name = "on" + types.TitleCase(fn.Name)
	}
	return b.finish(op)
}

// finish partitions the parameters of op and checks every value converts.
func (b *Builder) finish(op *Operation) (*Operation, error) {
	op.partition()
	if _, _, err := op.Transforms(); err != nil {
		return nil, err
	}
	return op, nil
}

func (b *Builder) returnValue(res resolver, rv metadata.ReturnValue) (types.Value, error) {
	if rv.Type.Name == "none" && !rv.Type.IsArray() {
		return types.Value{}, nil
	}
	v, err := res.value("result", rv.Type, rv.Transfer, rv.Nullable)
	if err != nil {
		return types.Value{}, err
	}
	return v.WithDoc(rv.Doc), nil
}

func (b *Builder) callback(res resolver, fn metadata.Function) (*Callback, error) {
	full := res.qualify(fn.Name)
	cb := &Callback{Name: full, Managed: b.Naming.TypeName(full), Native: fn.CIdentifier, Doc: fn.Doc}
	if !fn.Introspectable {
		b.Registry.RegisterIgnoredTypes(full)
		return nil, nil
	}

	// Declarations taking a callback without trampoline are dropped with it
	op, err := b.operation(res, full, KindCallback, fn, nil)
	if err != nil {
		if b.skip(err, full) {
			b.Registry.RegisterIgnoredTypes(full)
			return cb, nil
		}
		return nil, err
	}
	op.Symbol = types.TrampolineSymbol(cb.Managed)
	if len(op.Closures) == 0 {
		// Without user data native code gives the trampoline nothing to dispatch on
		logger.Debugw("callback has no closure data", "callback", full)
		b.Registry.RegisterIgnoredTypes(full)
		return cb, nil
	}
	cb.Trampoline = op
	return cb, nil
}

func (b *Builder) class(res resolver, c metadata.Class, isInterface bool) (*Class, error) {
	full := res.qualify(c.Name)
	if c.Fundamental || c.CType == "" {
		return nil, nil
	}
	t, err := b.Registry.Lookup(full, c.CType+"*", false)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", full)
	}

	class := &Class{
		Name:         full,
		Managed:      b.Naming.TypeName(full),
		Native:       c.CType,
		SymbolPrefix: c.SymbolPrefix,
		GlibTypeName: c.GlibTypeName,
		GetType:      c.GlibGetType,
		IsInterface:  isInterface,
		Abstract:     c.Abstract,
		Value:        t.Bind("self"),
		Doc:          c.Doc,
	}
	if parent := res.qualify(c.Parent); parent != "" && parent != "GObject.Object" && parent != "GObject.InitiallyUnowned" {
		if p, err := b.Registry.Lookup(parent, "", false); err == nil && p.Kind == types.KindObject {
			class.Parent = b.Naming.TypeName(parent)
		}
	}
	for _, i := range c.Implements {
		class.Implements = append(class.Implements, b.Naming.TypeName(res.qualify(i)))
	}

	if class.Constructors, err = b.constructors(res, class, c.Constructors); err != nil {
		return nil, err
	}
	receiver := class.Value
	if class.Methods, err = b.operations(res, full, KindMethod, c.Methods, &receiver); err != nil {
		return nil, err
	}
	if class.Functions, err = b.operations(res, full, KindFunction, c.Functions, nil); err != nil {
		return nil, err
	}

	for _, p := range c.Properties {
		prop, err := b.property(res, class, p)
		if err != nil {
			if b.skip(err, full+":"+p.Name) {
				continue
			}
			return nil, err
		}
		class.Properties = append(class.Properties, prop)
	}
	for _, s := range c.Signals {
		sig, err := b.signal(res, class, s)
		if err != nil {
			if b.skip(err, full+"::"+s.Name) {
				continue
			}
			return nil, err
		}
		class.Signals = append(class.Signals, sig)
	}
	return class, nil
}

// Constructors return the class being built with the declared ownership,
// whatever ancestor type the declaration names.
func (b *Builder) constructors(res resolver, class *Class, fns []metadata.Function) ([]*Operation, error) {
	ops, err := b.operations(res, class.Name, KindConstructor, fns, nil)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if op.Return.Kind() == types.KindObject || op.Return.Kind() == types.KindInterface {
			op.Return = class.Value.WithName("result").WithTransfer(op.Return.Transfer).WithNullable(op.Return.Nullable)
		}
		op.Name = "new" + class.Managed + strings.TrimPrefix(types.TitleCase(op.Name), "New")
	}
	return ops, nil
}

// property synthesizes the accessors and change notification of p. Getters
// always own their result since the native getter hands out copies.
func (b *Builder) property(res resolver, class *Class, p metadata.Property) (*Property, error) {
	path := class.Name + ":" + p.Name
	if !p.Introspectable {
		return nil, errors.Wrapf(errSkipped, "%s is not introspectable", path)
	}
	if res.ignored(p.Type) {
		return nil, errors.Wrapf(errSkipped, "%s has ignored type %s", path, p.Type.Name)
	}
	v, err := res.value(p.Name, p.Type, p.Transfer, false)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	if v.Kind() == types.KindParamSpec {
		return nil, errors.Wrapf(errSkipped, "%s holds a GParamSpec", path)
	}
	v = v.WithDoc(p.Doc)

	title := types.TitleCase(p.Name)
	prop := &Property{Name: p.Name, Value: v, Readable: p.Readable, Writable: p.Writable && !p.ConstructOnly}

	if prop.Readable {
		get := &Operation{
			Kind:     KindPropertyGet,
			Name:     "get" + title,
			Symbol:   p.Name,
			Return:   v.WithName("result").WithTransfer(types.TransferFull),
			Params:   []types.Value{class.Value},
			Receiver: true,
			Doc:      p.Doc,
			Path:     path,
		}
		if prop.Getter, err = b.finish(get); err != nil {
			return nil, err
		}

		notify, err := b.notifySignal(class, prop)
		if err != nil {
			return nil, err
		}
		prop.Notify = notify
	}

	if prop.Writable {
		set := &Operation{
			Kind:     KindPropertySet,
			Name:     "set" + title,
			Symbol:   p.Name,
			Params:   []types.Value{class.Value, v.WithName("value").WithTransfer(types.TransferNone)},
			Receiver: true,
			Doc:      p.Doc,
			Path:     path,
		}
		if prop.Setter, err = b.finish(set); err != nil {
			return nil, err
		}
	}
	return prop, nil
}

// notifySignal builds the change notification of a readable property. Its
// handler receives the emitting instance and the property's GParamSpec.
func (b *Builder) notifySignal(class *Class, prop *Property) (*Signal, error) {
	title := types.TitleCase(prop.Name)
	pspec, err := b.Registry.Lookup("GObject.ParamSpec", "GParamSpec*", false)
	if err != nil {
		return nil, err
	}
	sig := &Signal{
		Name:       "on" + title + "Changed",
		NativeName: "notify::" + prop.Name,
		Listener:   title + "ChangeListener",
		When:       "first",
		Property:   prop,
	}
	handler := []types.Value{class.Value.WithName("self"), pspec.Bind("pspec")}
	if err := b.listenerOperations(class, sig, handler, types.Value{}); err != nil {
		return nil, err
	}
	return sig, nil
}

func (b *Builder) signal(res resolver, class *Class, s metadata.Signal) (*Signal, error) {
	path := class.Name + "::" + s.Name
	if !s.Introspectable {
		return nil, errors.Wrapf(errSkipped, "%s is not introspectable", path)
	}
	title := types.TitleCase(s.Name)
	sig := &Signal{
		Name:       "on" + title,
		NativeName: s.Name,
		Listener:   title + "Listener",
		When:       s.When,
		Doc:        s.Doc,
	}

	ret, err := b.returnValue(res, s.ReturnValue)
	if err != nil {
		return nil, errors.Wrapf(err, "%s(return)", path)
	}
	receiver := class.Value.WithName("self")
	params, ret, err := res.parameters(s.Parameters, &receiver, ret, s.ReturnValue.Type)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	if err := b.listenerOperations(class, sig, params, ret); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return sig, nil
}

// listenerOperations fills the handler trampoline and the connect,
// disconnect, add and remove operations of sig. params are the native
// handler parameters without the trailing user data.
func (b *Builder) listenerOperations(class *Class, sig *Signal, params []types.Value, ret types.Value) error {
	path := class.Name + "::" + sig.NativeName
	managed := class.Managed + sig.Listener
	listener := types.Callback(class.Name+"."+sig.Listener, "GCallback", managed)

	handler := &Operation{
		Kind:     KindSignalHandler,
		Name:     sig.Name,
		Symbol:   types.TrampolineSymbol(managed),
		Return:   ret,
		Params:   append(append([]types.Value{}, params...), types.Closure(stmt.Managed("any")).Bind("user_data")),
		Receiver: true,
		Doc:      sig.Doc,
		Path:     path,
	}
	var err error
	if sig.Handler, err = b.finish(handler); err != nil {
		return err
	}

	gulong, err := b.Registry.Lookup("gulong", "gulong", false)
	if err != nil {
		return err
	}
	destroy, err := b.Registry.Lookup("GLib.DestroyNotify", "GDestroyNotify", false)
	if err != nil {
		return err
	}
	l := listener.Bind("listener").WithScope(types.ScopeNotified)
	data := types.Closure(l.ManagedType()).Bind("user_data").WithTransfer(types.TransferFull)
	data.Callback = &types.Link{Index: 1, Name: l.Name, Native: l.T.Native, Scope: types.ScopeNotified}
	handlerID := gulong.Bind("handler_id")

	ops := []struct {
		target **Operation
		op     *Operation
	}{
		{&sig.Connect, &Operation{
			Kind: KindSignalConnect, Name: "connect" + sig.Listener, Symbol: "g_signal_connect_data",
			Return: handlerID.WithName("result"),
			Params: []types.Value{class.Value, l, data, destroy.Bind("destroy")},
		}},
		{&sig.Disconnect, &Operation{
			Kind: KindSignalDisconnect, Name: "disconnect" + sig.Listener, Symbol: "g_signal_handler_disconnect",
			Params: []types.Value{class.Value, handlerID},
		}},
		{&sig.Add, &Operation{
			Kind: KindListenerAdd, Name: "add" + sig.Listener,
			Params: []types.Value{class.Value, l},
		}},
		{&sig.Remove, &Operation{
			Kind: KindListenerRemove, Name: "remove" + sig.Listener,
			Params: []types.Value{class.Value, l},
		}},
	}
	for _, o := range ops {
		o.op.Receiver = true
		o.op.Path = path
		o.op.Doc = sig.Doc
		if *o.target, err = b.finish(o.op); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) record(res resolver, r metadata.Record) (*Record, error) {
	if r.IsGTypeStructFor != "" || r.CType == "" {
		return nil, nil
	}
	full := res.qualify(r.Name)
	t, err := b.Registry.Lookup(full, r.CType+"*", false)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", full)
	}
	record := &Record{
		Name:     full,
		Managed:  b.Naming.TypeName(full),
		Native:   r.CType,
		CopyFunc: t.CopyFunc,
		FreeFunc: t.FreeFunc,
		Doc:      r.Doc,
	}

	var methods []metadata.Function
	for _, m := range r.Methods {
		switch m.Name {
		case "copy", "free", "ref", "unref":
			// Memory management stays inside the proxy
		default:
			methods = append(methods, m)
		}
	}
	if record.Constructors, err = b.operations(res, full, KindConstructor, r.Constructors, nil); err != nil {
		return nil, err
	}
	for _, op := range record.Constructors {
		op.Name = "new" + record.Managed + strings.TrimPrefix(types.TitleCase(op.Name), "New")
	}
	receiver := t.Bind("self")
	if record.Methods, err = b.operations(res, full, KindMethod, methods, &receiver); err != nil {
		return nil, err
	}
	if record.Functions, err = b.operations(res, full, KindFunction, r.Functions, nil); err != nil {
		return nil, err
	}
	return record, nil
}

// enums pairs plain enums with their registered "s"-suffixed variant, which
// only contributes member nicks. Unpaired registered enums are kept.
func (b *Builder) enums(ns metadata.Namespace) []*Enum {
	aliases := EnumAliases(ns)
	byName := map[string]metadata.Enum{}
	for _, e := range ns.Enums {
		byName[e.Name] = e
	}

	var out []*Enum
	for _, e := range ns.Enums {
		full := metadata.FullName(ns.Name, e.Name)
		if _, ok := aliases[full]; ok || b.Registry.IsIgnored(full) {
			continue
		}
		enum := &Enum{
			Name:     full,
			Managed:  b.Naming.TypeName(full),
			Native:   e.CType,
			Bitfield: e.Bitfield,
			Doc:      e.Doc,
		}
		pair, paired := byName[e.Name+"s"]
		paired = paired && e.GlibTypeName == "" && pair.GlibTypeName != ""
		for _, m := range e.Members {
			member := EnumMember{Name: strings.ToUpper(m.Name), CIdentifier: m.CIdentifier, Value: m.Value, Nick: m.Nick}
			if member.Nick == "" && paired {
				for _, pm := range pair.Members {
					if pm.Value == m.Value {
						member.Nick = pm.Nick
						break
					}
				}
			}
			if member.Nick != "" {
				enum.HasNick = true
			}
			enum.Members = append(enum.Members, member)
		}
		out = append(out, enum)
	}
	return out
}
