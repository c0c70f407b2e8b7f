package generation

import (
	"strings"

	"girbind/internal/errors"
	"girbind/internal/logger"
	"girbind/internal/synth"
	"girbind/internal/types"

	"github.com/dave/jennifer/jen"
)

const (
	detailedSignal = "cDetailedSignal"
	nativeError    = "cError"
	propertyGetter = "propertyGet"
)

// document renders doc as line comments.
func document(g *jen.Group, doc string) {
	for _, line := range strings.Split(strings.TrimSpace(doc), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			g.Comment(line)
		}
	}
}

func unsafePointer(x jen.Code) *jen.Statement {
	return jen.Qual("unsafe", "Pointer").Call(x)
}

// scope tracks the names declared on one receiver, or at package level.
type scope map[string]bool

// claim reserves name, reporting false when it is already taken.
func (s scope) claim(name string) bool {
	if s[name] {
		return false
	}
	s[name] = true
	return true
}

func (g *Generator) renderNamespace(f *jen.File, ns *synth.Namespace) error {
	for _, e := range ns.Enums {
		if g.names.claim(e.Managed) {
			renderEnum(f, e)
		}
	}
	for _, cb := range ns.Callbacks {
		if cb.Trampoline != nil && g.names.claim(cb.Managed) {
			renderCallbackType(f, cb)
		}
	}
	for _, classes := range [][]*synth.Class{ns.Classes, ns.Interfaces} {
		for _, c := range classes {
			if err := g.renderClass(f, c); err != nil {
				return errors.Wrapf(err, "%s", c.Name)
			}
		}
	}
	for _, r := range ns.Records {
		if err := g.renderRecord(f, r); err != nil {
			return errors.Wrapf(err, "%s", r.Name)
		}
	}

	prefix := ""
	if ns.Name != g.Primary {
		prefix = ns.Name
	}
	return g.renderFunctions(f, prefix, ns.Functions)
}

func (g *Generator) renderFunctions(f *jen.File, prefix string, ops []*synth.Operation) error {
	for _, op := range ops {
		name := prefix + types.Exported(op.Name)
		if !g.names.claim(name) {
			logger.Warnw("skipping function with taken name", "function", op.Path, "name", name)
			continue
		}
		code, err := g.outbound(op, name, "")
		if err != nil {
			return err
		}
		document(f.Group, op.Doc)
		f.Add(code)
	}
	return nil
}

// Enums are named integers. Members sharing a value keep their first name
// in the nick table.
func renderEnum(f *jen.File, e *synth.Enum) {
	document(f.Group, e.Doc)
	base := "int64"
	if e.Bitfield {
		base = "uint64"
	}
	f.Type().Id(e.Managed).Id(base)

	names := scope{}
	values := map[int64]bool{}
	nicks := jen.Dict{}
	f.Const().DefsFunc(func(d *jen.Group) {
		for _, m := range e.Members {
			name := e.Managed + types.TitleCase(strings.ToLower(m.Name))
			if !names.claim(name) {
				continue
			}
			d.Id(name).Id(e.Managed).Op("=").Lit(int(m.Value))
			if m.Nick != "" && !values[m.Value] {
				values[m.Value] = true
				nicks[jen.Id(name)] = jen.Lit(m.Nick)
			}
		}
	})
	if !e.HasNick {
		return
	}

	table := lowerFirst(e.Managed) + "Nicks"
	f.Var().Id(table).Op("=").Map(jen.Id(e.Managed)).String().Values(nicks)
	f.Comment("Nick returns the short name native code uses for v.")
	f.Func().Params(jen.Id("v").Id(e.Managed)).Id("Nick").Params().String().Block(
		jen.Return(jen.Id(table).Index(jen.Id("v"))),
	)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func renderCallbackType(f *jen.File, cb *synth.Callback) {
	document(f.Group, cb.Doc)
	f.Type().Id(cb.Managed).Func().Params(managedParams(cb.Trampoline, true)...).Add(managedResult(cb.Trampoline)...)
}

// managedParams lists the surfaced parameters of op as a managed signature.
func managedParams(op *synth.Operation, withReceiver bool) []jen.Code {
	var out []jen.Code
	for _, i := range op.Surfaced {
		if op.Receiver && i == 0 && !withReceiver {
			continue
		}
		v := op.Params[i]
		out = append(out, jen.Id(v.ManagedVar()).Add(lowerType(v.ManagedType())))
	}
	return out
}

func managedResult(op *synth.Operation) []jen.Code {
	if op.Return.IsVoid() {
		return nil
	}
	return []jen.Code{lowerType(op.Return.ManagedType())}
}

func (g *Generator) renderClass(f *jen.File, c *synth.Class) error {
	if !g.names.claim(c.Managed) {
		return errors.Newf("type name %s is already taken", c.Managed)
	}
	parent := g.classes[c.Parent]

	if c.Doc != "" {
		document(f.Group, c.Doc)
	} else {
		f.Commentf("%s wraps the native %s.", c.Managed, c.Native)
	}
	f.Type().Id(c.Managed).StructFunc(func(s *jen.Group) {
		if parent != nil {
			s.Id(parent.Managed)
		} else {
			s.Op("*").Qual(types.BridgePath, "Instance")
		}
	})

	f.Comment("NativeInstance returns the native instance behind the proxy.")
	f.Func().Params(jen.Id("self").Op("*").Id(c.Managed)).Id("NativeInstance").Params().
		Op("*").Qual(types.BridgePath, "Instance").Block(
		jen.If(jen.Id("self").Op("==").Nil()).Block(jen.Return(jen.Nil())),
		jen.Return(jen.Id("self").Dot("Instance")),
	)

	wrap := types.WrapFunc(c.Managed)
	g.names.claim(wrap)
	f.Func().Id(wrap).Params(jen.Id("inst").Op("*").Qual(types.BridgePath, "Instance")).Id("any").Block(
		jen.Return(jen.Op("&").Add(g.instanceLiteral(c, 0))),
	)

	if c.GetType != "" && g.names.claim(c.Managed+"GType") {
		f.Commentf("%sGType returns the runtime type of %s.", c.Managed, c.Managed)
		f.Func().Id(c.Managed+"GType").Params().Uint64().Block(
			jen.Return(jen.Uint64().Call(jen.Qual("C", c.GetType).Call())),
		)
	}

	methods := scope{"Instance": true, "NativeInstance": true}
	if parent != nil {
		methods.claim(parent.Managed)
	}
	for _, sig := range c.Signals {
		g.renderListener(f, c, sig)
	}
	for _, p := range c.Properties {
		if p.Notify != nil {
			g.renderListener(f, c, p.Notify)
		}
	}

	if err := g.renderFunctions(f, "", c.Constructors); err != nil {
		return err
	}
	if err := g.renderFunctions(f, c.Managed, c.Functions); err != nil {
		return err
	}
	if err := g.renderMethods(f, methods, c.Methods); err != nil {
		return err
	}
	for _, sig := range c.Signals {
		if err := g.renderSignal(f, methods, sig); err != nil {
			return err
		}
	}
	for _, p := range c.Properties {
		if err := g.renderProperty(f, methods, p); err != nil {
			return err
		}
	}
	return nil
}

// instanceLiteral builds the composite literal wrapping inst, nesting one
// level per generated ancestor.
func (g *Generator) instanceLiteral(c *synth.Class, depth int) jen.Code {
	parent := g.classes[c.Parent]
	if parent == nil || depth > 64 {
		return jen.Id(c.Managed).Values(jen.Dict{jen.Id("Instance"): jen.Id("inst")})
	}
	return jen.Id(c.Managed).Values(jen.Dict{jen.Id(parent.Managed): g.instanceLiteral(parent, depth+1)})
}

func (g *Generator) renderListener(f *jen.File, c *synth.Class, sig *synth.Signal) {
	name := c.Managed + sig.Listener
	if !g.names.claim(name) {
		return
	}
	if sig.Doc != "" {
		document(f.Group, sig.Doc)
	} else {
		f.Commentf("%s receives %s emissions.", name, sig.NativeName)
	}
	f.Type().Id(name).Interface(
		jen.Id(types.Exported(sig.Handler.Name)).Params(managedParams(sig.Handler, true)...).Add(managedResult(sig.Handler)...),
	)
}

func (g *Generator) renderMethods(f *jen.File, methods scope, ops []*synth.Operation) error {
	for _, op := range ops {
		name := types.Exported(op.Name)
		if !methods.claim(name) {
			logger.Warnw("skipping method with taken name", "method", op.Path, "name", name)
			continue
		}
		code, err := g.outbound(op, name, "")
		if err != nil {
			return err
		}
		document(f.Group, op.Doc)
		f.Add(code)
	}
	return nil
}

func (g *Generator) renderSignal(f *jen.File, methods scope, sig *synth.Signal) error {
	for _, op := range []*synth.Operation{sig.Connect, sig.Disconnect} {
		name := types.Exported(op.Name)
		if !methods.claim(name) {
			return errors.Newf("%s: method %s is already taken", op.Path, name)
		}
		code, err := g.outbound(op, name, sig.NativeName)
		if err != nil {
			return err
		}
		f.Add(code)
	}

	add, remove := types.Exported(sig.Add.Name), types.Exported(sig.Remove.Name)
	if !methods.claim(add) || !methods.claim(remove) {
		return errors.Newf("%s: listener methods are already taken", sig.Add.Path)
	}
	self := sig.Add.Params[0]
	listener := sig.Add.Params[1]
	receiver := jen.Id(self.ManagedVar()).Add(lowerType(self.ManagedType()))
	param := jen.Id(listener.ManagedVar()).Add(lowerType(listener.ManagedType()))
	inst := jen.Id(self.ManagedVar()).Dot("NativeInstance").Call()

	f.Commentf("%s connects listener until it is passed to %s.", add, remove)
	f.Func().Params(receiver).Id(add).Params(param).Error().Block(
		jen.Id("inst").Op(":=").Add(inst),
		jen.If(jen.Id("inst").Op("==").Nil()).Block(jen.Return(jen.Qual(types.BridgePath, "ErrDanglingReference"))),
		jen.List(jen.Id("id"), jen.Err()).Op(":=").Id(self.ManagedVar()).Dot(types.Exported(sig.Connect.Name)).Call(jen.Id(listener.ManagedVar())),
		jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Err())),
		jen.Id("inst").Dot("AddListener").Call(jen.Lit(sig.NativeName), jen.Id(listener.ManagedVar()), jen.Id("id")),
		jen.Return(jen.Nil()),
	)

	f.Commentf("%s disconnects a listener added with %s.", remove, add)
	f.Func().Params(receiver.Clone()).Id(remove).Params(param.Clone()).Error().Block(
		jen.List(jen.Id("id"), jen.Id("ok")).Op(":=").Add(inst.Clone()).Dot("RemoveListener").
			Call(jen.Lit(sig.NativeName), jen.Id(listener.ManagedVar())),
		jen.If(jen.Op("!").Id("ok")).Block(jen.Return(jen.Nil())),
		jen.Return(jen.Id(self.ManagedVar()).Dot(types.Exported(sig.Disconnect.Name)).Call(jen.Id("id"))),
	)
	return nil
}

// Accessors colliding with declared methods get a Property suffix.
func (g *Generator) renderProperty(f *jen.File, methods scope, p *synth.Property) error {
	for _, op := range []*synth.Operation{p.Getter, p.Setter} {
		if op == nil {
			continue
		}
		name := types.Exported(op.Name)
		if !methods.claim(name) {
			name += "Property"
			if !methods.claim(name) {
				logger.Warnw("skipping property accessor with taken name", "property", op.Path, "name", name)
				continue
			}
		}
		code, err := g.outbound(op, name, "")
		if err != nil {
			return err
		}
		document(f.Group, op.Doc)
		f.Add(code)
	}
	if p.Notify != nil {
		return g.renderSignal(f, methods, p.Notify)
	}
	return nil
}

func (g *Generator) renderRecord(f *jen.File, r *synth.Record) error {
	if !g.names.claim(r.Managed) {
		return errors.Newf("type name %s is already taken", r.Managed)
	}
	if r.Doc != "" {
		document(f.Group, r.Doc)
	} else {
		f.Commentf("%s wraps the native %s.", r.Managed, r.Native)
	}
	f.Type().Id(r.Managed).Struct(jen.Id("ptr").Qual("unsafe", "Pointer"))
	f.Func().Params(jen.Id("self").Op("*").Id(r.Managed)).Id("recordPointer").Params().Qual("unsafe", "Pointer").Block(
		jen.If(jen.Id("self").Op("==").Nil()).Block(jen.Return(jen.Nil())),
		jen.Return(jen.Id("self").Dot("ptr")),
	)

	if err := g.renderFunctions(f, "", r.Constructors); err != nil {
		return err
	}
	if err := g.renderFunctions(f, r.Managed, r.Functions); err != nil {
		return err
	}
	return g.renderMethods(f, scope{}, r.Methods)
}

// outbound renders a managed function calling native code. signal names
// the detailed signal of connect operations.
func (g *Generator) outbound(op *synth.Operation, name string, signal string) (jen.Code, error) {
	params, ret, err := op.Transforms()
	if err != nil {
		return nil, err
	}
	g.require(append(params, ret)...)

	fails := ret.Fails()
	for _, t := range params {
		fails = fails || t.Fails()
	}
	hasErr := fails || op.Throws

	var zeros, results []jen.Code
	if !op.Return.IsVoid() {
		zeros = append(zeros, lowerer{}.expr(op.Return.T.Default))
		results = append(results, lowerType(op.Return.ManagedType()))
	}
	if hasErr {
		results = append(results, jen.Error())
	}
	l := returning(zeros...)

	var body []jen.Code
	if fails {
		body = append(body, jen.Var().Id(types.ErrVar).Error())
	}
	body = append(body, l.stmts(types.Linearize(params...))...)
	body = append(body, g.invocation(op, signal, zeros)...)
	values := []jen.Code{}
	if !op.Return.IsVoid() {
		body = append(body, l.stmts(types.Linearize(ret))...)
		values = append(values, jen.Id(op.Return.ManagedVar()))
	}
	if hasErr {
		values = append(values, jen.Nil())
	}
	body = append(body, jen.Return(values...))

	fn := jen.Func()
	if op.Receiver {
		self := op.Params[0]
		fn.Params(jen.Id(self.ManagedVar()).Add(lowerType(self.ManagedType())))
	}
	fn.Id(name).Params(managedParams(op, false)...)
	switch len(results) {
	case 0:
	case 1:
		fn.Add(results[0])
	default:
		fn.Params(results...)
	}
	return fn.Block(body...), nil
}

// invocation renders the native call of op, leaving the native return value
// in its native variable.
func (g *Generator) invocation(op *synth.Operation, signal string, zeros []jen.Code) []jen.Code {
	assign := func(call jen.Code) jen.Code {
		if op.Return.IsVoid() {
			return call
		}
		return jen.Id(op.Return.NativeVar()).Op(":=").Add(call)
	}
	instance := func() *jen.Statement {
		return jen.Qual("C", "gpointer").Call(unsafePointer(jen.Id(op.Params[0].NativeVar())))
	}

	switch op.Kind {
	case synth.KindPropertyGet:
		out := op.Return.NativeVar()
		return []jen.Code{
			jen.Var().Id(out).Add(lowerType(op.Return.NativeType())),
			jen.Id(propertyGetter).Call(
				unsafePointer(jen.Id(op.Params[0].NativeVar())),
				jen.Lit(op.Symbol),
				unsafePointer(jen.Op("&").Id(out)),
			),
		}

	case synth.KindPropertySet:
		value := op.Params[1]
		class := setterClass(value)
		return []jen.Code{
			jen.Id(propertySetter(class)).Call(
				unsafePointer(jen.Id(op.Params[0].NativeVar())),
				jen.Lit(op.Symbol),
				setterArgument(class, jen.Id(value.NativeVar())),
			),
		}

	case synth.KindSignalConnect:
		listener, data, destroy := op.Params[1], op.Params[2], op.Params[3]
		return []jen.Code{
			jen.Id(detailedSignal).Op(":=").Qual("C", "CString").Call(jen.Lit(signal)),
			jen.Defer().Qual("C", "free").Call(unsafePointer(jen.Id(detailedSignal))),
			assign(jen.Qual("C", op.Symbol).Call(
				instance(),
				jen.Parens(jen.Op("*").Qual("C", "gchar")).Call(unsafePointer(jen.Id(detailedSignal))),
				jen.Id(listener.NativeVar()),
				jen.Id(data.NativeVar()),
				jen.Parens(jen.Qual("C", "GClosureNotify")).Call(unsafePointer(jen.Id(destroy.NativeVar()))),
				jen.Lit(0),
			)),
		}

	case synth.KindSignalDisconnect:
		return []jen.Code{jen.Qual("C", op.Symbol).Call(instance(), jen.Id(op.Params[1].NativeVar()))}
	}

	args := make([]jen.Code, 0, len(op.Params)+1)
	for _, p := range op.Params {
		args = append(args, jen.Id(p.NativeVar()))
	}
	var out []jen.Code
	if op.Throws {
		out = append(out, jen.Var().Id(nativeError).Op("*").Qual("C", "GError"))
		args = append(args, jen.Op("&").Id(nativeError))
	}
	out = append(out, assign(jen.Qual("C", op.Symbol).Call(args...)))
	if op.Throws {
		values := append(append([]jen.Code{}, zeros...), jen.Id(types.ErrorToManaged).Call(jen.Id(nativeError)))
		out = append(out, jen.If(jen.Id(nativeError).Op("!=").Nil()).Block(jen.Return(values...)))
	}
	return out
}
