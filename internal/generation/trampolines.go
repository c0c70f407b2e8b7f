package generation

import (
	"girbind/internal/errors"
	"girbind/internal/synth"
	"girbind/internal/types"

	"github.com/dave/jennifer/jen"
)

const dispatchVar = "dispatch"

func (g *Generator) renderTrampolines(f *jen.File, ns *synth.Namespace) error {
	for _, cb := range ns.Callbacks {
		if cb.Trampoline == nil {
			continue
		}
		err := g.inbound(f, cb.Trampoline, jen.Id(cb.Managed), func(args []jen.Code) *jen.Statement {
			return jen.Id(dispatchVar).Call(args...)
		})
		if err != nil {
			return errors.Wrapf(err, "%s", cb.Name)
		}
	}

	for _, classes := range [][]*synth.Class{ns.Classes, ns.Interfaces} {
		for _, c := range classes {
			signals := append([]*synth.Signal{}, c.Signals...)
			for _, p := range c.Properties {
				if p.Notify != nil {
					signals = append(signals, p.Notify)
				}
			}
			for _, sig := range signals {
				method := types.Exported(sig.Handler.Name)
				err := g.inbound(f, sig.Handler, jen.Id(c.Managed+sig.Listener), func(args []jen.Code) *jen.Statement {
					return jen.Id(dispatchVar).Dot(method).Call(args...)
				})
				if err != nil {
					return errors.Wrapf(err, "%s", sig.Handler.Path)
				}
			}
		}
	}
	return nil
}

// inbound renders the exported routine native code calls for op. The user
// data cell holds the managed value of type target; call invokes it with
// the converted arguments. Errors cannot reach the native caller, so they
// are reported and a zero value is returned.
func (g *Generator) inbound(f *jen.File, op *synth.Operation, target jen.Code, call func(args []jen.Code) *jen.Statement) error {
	data := userData(op)
	if data == nil {
		return errors.Newf("%s has no user data", op.Path)
	}
	params, ret, err := op.Transforms()
	if err != nil {
		return err
	}
	g.require(append(params, ret)...)

	zero := nativeZero(op.Return)
	l := reporting(zero)
	abort := []jen.Code{jen.Qual(types.BridgePath, "Report").Call(jen.Qual(types.BridgePath, "ErrUnknownCell"))}
	if zero != nil {
		abort = append(abort, jen.Return(zero))
	} else {
		abort = append(abort, jen.Return())
	}

	fails := ret.Fails()
	for _, t := range params {
		fails = fails || t.Fails()
	}
	var body []jen.Code
	if fails {
		body = append(body, jen.Var().Id(types.ErrVar).Error())
	}
	body = append(body, l.stmts(types.Linearize(params...))...)
	body = append(body,
		jen.List(jen.Id(dispatchVar), jen.Id("ok")).Op(":=").Id(data.ManagedVar()).Assert(target),
		jen.If(jen.Op("!").Id("ok")).Block(abort...),
	)

	var args []jen.Code
	for _, v := range op.SurfacedParams() {
		args = append(args, jen.Id(v.ManagedVar()))
	}
	if op.Return.IsVoid() {
		body = append(body, call(args))
	} else {
		// The native caller owns nothing it could free, so cleanups are dropped
		conversion := types.Transform{Declarations: ret.Declarations, Conversion: ret.Conversion}
		body = append(body, jen.Id(op.Return.ManagedVar()).Op(":=").Add(call(args)))
		body = append(body, l.stmts(types.Linearize(conversion))...)
		body = append(body, jen.Return(jen.Id(op.Return.NativeVar())))
	}

	var natives []jen.Code
	for _, p := range op.Params {
		natives = append(natives, jen.Id(p.NativeVar()).Add(lowerType(p.NativeType())))
	}
	f.Comment("//export " + op.Symbol)
	fn := f.Func().Id(op.Symbol).Params(natives...)
	if !op.Return.IsVoid() {
		fn.Add(lowerType(op.Return.NativeType()))
	}
	fn.Block(body...)
	return nil
}

// userData returns the closure parameter carrying the dispatch target.
func userData(op *synth.Operation) *types.Value {
	for i, p := range op.Params {
		if p.Kind() == types.KindClosure && p.Callback == nil {
			return &op.Params[i]
		}
	}
	return nil
}

func nativeZero(v types.Value) jen.Code {
	if v.IsVoid() {
		return nil
	}
	t := v.NativeType()
	switch {
	case t.Pointer > 0, t.Name == "gpointer", t.Name == "gconstpointer":
		return jen.Nil()
	}
	switch v.Kind() {
	case types.KindCallback, types.KindDestroy, types.KindClosure:
		return jen.Nil()
	}
	return jen.Lit(0)
}
