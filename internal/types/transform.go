package types

import (
	"girbind/internal/errors"
	"girbind/internal/stmt"
)

// ErrVar is the name of the error variable checked after failable conversions.
const ErrVar = "err"

// Transform is the conversion of one value across the boundary.
type Transform struct {
	Declarations []stmt.Stmt
	Conversion   []stmt.Stmt
	Cleanup      []stmt.Stmt
	Helpers      []Helper
}

// Empty reports whether the transform emits nothing.
func (t Transform) Empty() bool {
	return len(t.Declarations) == 0 && len(t.Conversion) == 0 && len(t.Cleanup) == 0
}

// Fails reports whether the conversion can abort the enclosing operation.
func (t Transform) Fails() bool {
	return hasCheck(t.Conversion) || hasCheck(t.Cleanup)
}

func hasCheck(stmts []stmt.Stmt) bool {
	for _, s := range stmts {
		switch s := s.(type) {
		case stmt.Check:
			return true
		case stmt.If:
			if hasCheck(s.Then) || hasCheck(s.Else) {
				return true
			}
		case stmt.While:
			if hasCheck(s.Body) {
				return true
			}
		case stmt.Range:
			if hasCheck(s.Body) {
				return true
			}
		}
	}
	return false
}

// Compose merges transforms into one: declarations and conversions are
// concatenated in order, cleanups in reverse order.
func Compose(ts ...Transform) Transform {
	var out Transform
	for _, t := range ts {
		out.Declarations = append(out.Declarations, t.Declarations...)
		out.Conversion = append(out.Conversion, t.Conversion...)
		out.Helpers = mergeHelpers(out.Helpers, t.Helpers)
	}
	for i := len(ts) - 1; i >= 0; i-- {
		out.Cleanup = append(out.Cleanup, ts[i].Cleanup...)
	}
	return out
}

// Linearize lays out transforms for one operation body. All declarations come
// first. Each conversion is followed by a deferred cleanup so that a failure in
// a later conversion still releases earlier resources, in reverse order.
func Linearize(ts ...Transform) []stmt.Stmt {
	var out []stmt.Stmt
	for _, t := range ts {
		out = append(out, t.Declarations...)
	}
	for _, t := range ts {
		out = append(out, t.Conversion...)
		if len(t.Cleanup) > 0 {
			out = append(out, stmt.Defer{Body: t.Cleanup})
		}
	}
	return out
}

// Convert builds the transform of v in the given direction.
func Convert(v Value, toNative bool) (Transform, error) {
	if toNative {
		return v.ToNative()
	}
	return v.ToManaged()
}

// ToNative converts the managed variable of v into its native variable.
// Used for operation parameters and callback return values.
func (v Value) ToNative() (Transform, error) {
	switch v.Kind() {
	case KindPrimitive:
		return v.primitiveToNative(), nil
	case KindPrimitiveArray:
		return v.primitiveArrayToNative(), nil
	case KindString:
		return v.stringToNative(), nil
	case KindEnum:
		return v.enumToNative(), nil
	case KindBitfield:
		return v.bitfieldToNative(), nil
	case KindObject, KindInterface:
		return v.objectToNative(), nil
	case KindRecord:
		return v.recordToNative(), nil
	case KindCallback:
		return v.callbackToNative(), nil
	case KindClosure:
		return v.closureToNative(), nil
	case KindDestroy:
		return v.destroyToNative(), nil
	case KindVoid:
		return Transform{}, errors.AssertionFailedf("no conversion for void value %q", v.Name)
	}
	return Transform{}, errors.Wrapf(errors.ErrUnsupportedDirection, "%s %q to native", v.Kind(), v.Name)
}

// ToManaged converts the native variable of v into its managed variable.
// Used for operation return values and callback parameters.
func (v Value) ToManaged() (Transform, error) {
	switch v.Kind() {
	case KindPrimitive:
		return v.primitiveToManaged(), nil
	case KindPrimitiveArray:
		return v.primitiveArrayToManaged()
	case KindString:
		return v.stringToManaged(), nil
	case KindEnum:
		return v.enumToManaged(), nil
	case KindBitfield:
		return v.bitfieldToManaged(), nil
	case KindObject, KindInterface:
		return v.objectToManaged(), nil
	case KindRecord:
		return v.recordToManaged(), nil
	case KindObjectArray:
		return v.objectArrayToManaged()
	case KindClosure:
		return v.closureToManaged(), nil
	case KindDestroy, KindParamSpec:
		return Transform{}, nil
	case KindList, KindSList:
		return v.listToManaged()
	case KindHashTable:
		return v.hashTableToManaged()
	case KindGValue:
		return v.gvalueToManaged(), nil
	case KindVoid:
		return Transform{}, errors.AssertionFailedf("no conversion for void value %q", v.Name)
	}
	return Transform{}, errors.Wrapf(errors.ErrUnsupportedDirection, "%s %q to managed", v.Kind(), v.Name)
}
