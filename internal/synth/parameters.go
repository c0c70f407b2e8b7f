package synth

import (
	"sort"

	"girbind/internal/errors"
	"girbind/internal/metadata"
	"girbind/internal/stmt"
	"girbind/internal/types"
)

// errSkipped marks declarations that are left out of the bindings without
// failing the run.
var errSkipped = errors.New("declaration skipped")

// returnIndex is the referrer recorded for lengths measuring the return value.
const returnIndex = -1

// roles are the relational edges of one parameter list, keyed by the raw
// index of the referenced parameter.
type roles struct {
	closures map[int]int
	destroys map[int]int
	lengths  map[int]int
}

func (r roles) referenced(k int) bool {
	_, c := r.closures[k]
	_, d := r.destroys[k]
	_, l := r.lengths[k]
	return c || d || l
}

// resolver turns raw type references of one namespace into values.
type resolver struct {
	registry  *types.Registry
	namespace string
}

func (r resolver) qualify(name string) string {
	return metadata.FullName(r.namespace, name)
}

func (r resolver) ignored(ref metadata.TypeRef) bool {
	if r.registry.IsIgnored(r.qualify(ref.Name)) {
		return true
	}
	for _, in := range ref.Inner {
		if r.ignored(in) {
			return true
		}
	}
	return false
}

// value resolves ref into a value called name.
func (r resolver) value(name string, ref metadata.TypeRef, transfer string, nullable bool) (types.Value, error) {
	tr := types.ParseTransfer(transfer)
	if ref.Name == "va_list" {
		return types.Value{}, errors.Wrapf(errSkipped, "%q is a va_list", name)
	}
	t, err := r.registry.Lookup(r.qualify(ref.Name), ref.CType, ref.IsArray())
	if err != nil {
		return types.Value{}, err
	}
	if !t.Kind.Container() {
		return t.Bind(name).WithTransfer(tr).WithNullable(nullable), nil
	}

	var inner []types.Value
	for _, in := range ref.Inner {
		v, err := r.value(name, in, "none", false)
		if err != nil {
			return types.Value{}, errors.Wrapf(err, "element of %q", name)
		}
		inner = append(inner, v)
	}
	v, err := types.NewContainer(t, name, tr, inner...)
	if err != nil {
		return types.Value{}, err
	}
	return v.WithNullable(nullable), nil
}

// collectRoles records which parameters are referenced as closure data,
// destroy notifies and array lengths. Targets outside the list and
// parameters playing two roles are schema errors.
func (r resolver) collectRoles(raw []metadata.Parameter, ret metadata.TypeRef) (roles, error) {
	rs := roles{closures: map[int]int{}, destroys: map[int]int{}, lengths: map[int]int{}}
	inRange := func(k int, attr string, target int) error {
		if target < 0 || target >= len(raw) {
			return errors.WithHintf(
				errors.Wrapf(errors.ErrMissingTarget, "%s %s=%d", raw[k].Name, attr, target),
				"the declaration has %d parameters", len(raw))
		}
		return nil
	}

	for k, p := range raw {
		if p.Closure != nil {
			t := *p.Closure
			if err := inRange(k, "closure", t); err != nil {
				return rs, err
			}
			if back := raw[t].Closure; t != k && back != nil && *back == k {
				// Mutual closure attributes: keep the edge leaving the callback
				if !r.isCallback(p.Type) && (r.isCallback(raw[t].Type) || t < k) {
					continue
				}
			}
			if prev, ok := rs.closures[t]; ok && prev != k {
				return rs, errors.Wrapf(errors.ErrConflictingRole,
					"%s is the closure of both %s and %s", raw[t].Name, raw[prev].Name, p.Name)
			}
			rs.closures[t] = k
		}
		if p.Destroy != nil {
			t := *p.Destroy
			if err := inRange(k, "destroy", t); err != nil {
				return rs, err
			}
			rs.destroys[t] = k
		}
		if p.Type.Array != nil && p.Type.Array.Length != nil {
			t := *p.Type.Array.Length
			if err := inRange(k, "length", t); err != nil {
				return rs, err
			}
			rs.lengths[t] = k
		}
	}
	if ret.Array != nil && ret.Array.Length != nil {
		t := *ret.Array.Length
		if t < 0 || t >= len(raw) {
			return rs, errors.Wrapf(errors.ErrMissingTarget, "return value length=%d", t)
		}
		rs.lengths[t] = returnIndex
	}

	for t := range rs.closures {
		if d, ok := rs.destroys[t]; ok && d != t {
			return rs, errors.Wrapf(errors.ErrConflictingRole, "%s is both closure data and destroy notify", raw[t].Name)
		}
	}
	for t := range rs.lengths {
		_, c := rs.closures[t]
		_, d := rs.destroys[t]
		if c || d {
			return rs, errors.Wrapf(errors.ErrConflictingRole, "%s is both an array length and closure data", raw[t].Name)
		}
	}
	return rs, nil
}

func (r resolver) isCallback(ref metadata.TypeRef) bool {
	t, err := r.registry.Lookup(r.qualify(ref.Name), ref.CType, ref.IsArray())
	return err == nil && t.Kind == types.KindCallback
}

// parameters builds the values of a parameter list. When receiver is set it
// takes index 0 and raw parameter k lands at k+1. The returned return value
// is linked to its length parameter when it has one.
func (r resolver) parameters(raw []metadata.Parameter, receiver *types.Value, ret types.Value, retRef metadata.TypeRef) ([]types.Value, types.Value, error) {
	for _, p := range raw {
		if p.Direction != "in" {
			return nil, ret, errors.Wrapf(errSkipped, "%s is an %s parameter", p.Name, p.Direction)
		}
		if r.ignored(p.Type) {
			return nil, ret, errors.Wrapf(errSkipped, "%s uses ignored type %s", p.Name, p.Type.Name)
		}
	}

	rs, err := r.collectRoles(raw, retRef)
	if err != nil {
		return nil, ret, err
	}

	off := 0
	var values []types.Value
	if receiver != nil {
		off = 1
		values = append(values, *receiver)
	}
	values = append(values, make([]types.Value, len(raw))...)

	for k, p := range raw {
		if rs.referenced(k) {
			continue
		}
		v, err := r.value(p.Name, p.Type, p.Transfer, p.Nullable)
		if err != nil {
			return nil, ret, errors.Wrapf(err, "%s", p.Name)
		}
		values[k+off] = v.WithScope(types.Scope(p.Scope)).WithDoc(p.Doc)
	}

	for _, t := range sortedKeys(rs.destroys) {
		ref := rs.destroys[t]
		if ref == t {
			// A destroy notify for its own closure data
			continue
		}
		if values[t+off], err = r.destroyValue(raw[t]); err != nil {
			return nil, ret, err
		}
		if values[ref+off].T != nil {
			values[ref+off] = values[ref+off].WithScope(types.ScopeNotified)
		}
	}

	for _, t := range sortedKeys(rs.closures) {
		ref := rs.closures[t]
		if ref == t {
			values[t+off] = types.Closure(stmt.Managed("any")).Bind(raw[t].Name).
				WithScope(types.Scope(raw[t].Scope)).WithDoc(raw[t].Doc)
			continue
		}
		callback := values[ref+off]
		if callback.T == nil {
			return nil, ret, errors.Wrapf(errors.ErrConflictingRole,
				"closure %s refers to %s which plays another role", raw[t].Name, raw[ref].Name)
		}
		scope := callback.Scope
		if scope == types.ScopeNone {
			scope = types.ScopeCall
		}
		v := types.Closure(callback.ManagedType()).Bind(raw[t].Name).WithTransfer(types.TransferFull).WithDoc(raw[t].Doc)
		v.Callback = &types.Link{Index: ref + off, Name: callback.Name, Native: callback.T.Native, Scope: scope}
		values[t+off] = v
	}

	// Self destroy notifies are only known once their closure exists
	for _, t := range sortedKeys(rs.destroys) {
		if rs.destroys[t] == t && values[t+off].T == nil {
			if values[t+off], err = r.destroyValue(raw[t]); err != nil {
				return nil, ret, err
			}
		}
	}

	for _, t := range sortedKeys(rs.lengths) {
		ref := rs.lengths[t]
		length, err := r.value(raw[t].Name, raw[t].Type, raw[t].Transfer, false)
		if err != nil {
			return nil, ret, errors.Wrapf(err, "%s", raw[t].Name)
		}
		if ref == returnIndex {
			values[t+off] = length.WithArray(returnIndex, ret)
			ret = ret.WithLength(t+off, values[t+off])
			continue
		}
		values[t+off] = length.WithArray(ref+off, values[ref+off])
		values[ref+off] = values[ref+off].WithLength(t+off, values[t+off])
	}
	return values, ret, nil
}

// Destroy notifies are always bound as GDestroyNotify, whatever callback
// type the declaration names.
func (r resolver) destroyValue(p metadata.Parameter) (types.Value, error) {
	t, err := r.registry.Lookup("GLib.DestroyNotify", "GDestroyNotify", false)
	if err != nil {
		return types.Value{}, err
	}
	return t.Bind(p.Name).WithDoc(p.Doc), nil
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
