package types

import (
	"sort"
	"strings"
	"sync"
)

// HelperKind selects the body the back-end renders for a helper routine.
type HelperKind int

const (
	HelperBoolToNative HelperKind = iota
	HelperBoolToManaged
	HelperStringToNative
	HelperStringToManaged
	HelperEnumToManaged
	HelperObjectToNative
	HelperObjectToManaged
	HelperRecordToNative
	HelperRecordToManaged
	HelperClosureNew
	HelperClosureValue
	HelperClosureInvoked
	HelperClosureRelease
	HelperDestroyNotify
	HelperValueToManaged
	HelperArrayLength
	HelperErrorToManaged
)

// Helper is a supporting routine emitted once per generated package.
// Helpers are content addressed: two requests with the same name are the
// same routine.
type Helper struct {
	Name string
	Kind HelperKind
	// Managed type the helper is specialized for
	Subject string
	// Native type the helper is specialized for
	Native string
	// Native free function of record helpers
	FreeFunc string
}

// Standard helper names
const (
	BoolToNative    = "gbooleanToNative"
	BoolToManaged   = "gbooleanToManaged"
	StringToNative  = "stringToNative"
	StringToManaged = "stringToManaged"
	ObjectToNative  = "objectToNative"
	ObjectToManaged = "objectToManaged"
	RecordToNative  = "recordToNative"
	ClosureNew      = "closureNew"
	ClosureValue    = "closureValue"
	ClosureInvoked  = "closureInvoked"
	ClosureRelease  = "closureRelease"
	DestroyNotify   = "girbindDestroyNotify"
	ValueToManaged  = "gvalueToManaged"
	ArrayLength     = "nativeArrayLength"
	ErrorToManaged  = "gerrorToManaged"
)

var standardHelpers = []Helper{
	{Name: BoolToNative, Kind: HelperBoolToNative},
	{Name: BoolToManaged, Kind: HelperBoolToManaged},
	{Name: StringToNative, Kind: HelperStringToNative},
	{Name: StringToManaged, Kind: HelperStringToManaged},
	{Name: ObjectToNative, Kind: HelperObjectToNative},
	{Name: ObjectToManaged, Kind: HelperObjectToManaged},
	{Name: RecordToNative, Kind: HelperRecordToNative},
	{Name: ClosureNew, Kind: HelperClosureNew},
	{Name: ClosureValue, Kind: HelperClosureValue},
	{Name: ClosureInvoked, Kind: HelperClosureInvoked},
	{Name: ClosureRelease, Kind: HelperClosureRelease},
	{Name: DestroyNotify, Kind: HelperDestroyNotify},
	{Name: ValueToManaged, Kind: HelperValueToManaged},
	{Name: ArrayLength, Kind: HelperArrayLength},
	{Name: ErrorToManaged, Kind: HelperErrorToManaged},
}

// StandardHelper returns the standard helper called name.
func StandardHelper(name string) Helper {
	for _, h := range standardHelpers {
		if h.Name == name {
			return h
		}
	}
	panic("unknown standard helper " + name)
}

// EnumHelper returns the lookup helper converting native values to enum t.
func EnumHelper(managed string) Helper {
	return Helper{Name: lowerFirst(managed) + "FromNative", Kind: HelperEnumToManaged, Subject: managed}
}

// RecordHelper returns the helper wrapping native records of t.
func RecordHelper(t *Template) Helper {
	return Helper{
		Name:     lowerFirst(t.Managed.Deref().Name) + "FromNative",
		Kind:     HelperRecordToManaged,
		Subject:  t.Managed.Deref().Name,
		Native:   t.Native,
		FreeFunc: t.FreeFunc,
	}
}

// HelperRegistry collects the helpers required by one generated package.
type HelperRegistry struct {
	mu      sync.Mutex
	helpers map[string]Helper
}

// NewHelperRegistry creates an empty registry.
func NewHelperRegistry() *HelperRegistry {
	return &HelperRegistry{helpers: map[string]Helper{}}
}

// RegisterStandardHelpers adds the helpers every package carries.
func RegisterStandardHelpers(r *HelperRegistry) {
	for _, h := range standardHelpers {
		r.Require(h)
	}
}

// Require records that helper h is needed. The first definition of a name wins.
func (r *HelperRegistry) Require(helpers ...Helper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range helpers {
		if _, ok := r.helpers[h.Name]; !ok {
			r.helpers[h.Name] = h
		}
	}
}

// Lookup returns the helper called name.
func (r *HelperRegistry) Lookup(name string) (Helper, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.helpers[name]
	return h, ok
}

// Sorted returns all helpers ordered by name.
func (r *HelperRegistry) Sorted() []Helper {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Helper, 0, len(r.helpers))
	for _, h := range r.helpers {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered helpers.
func (r *HelperRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.helpers)
}

func mergeHelpers(into []Helper, from []Helper) []Helper {
	for _, h := range from {
		found := false
		for _, existing := range into {
			if existing.Name == h.Name {
				found = true
				break
			}
		}
		if !found {
			into = append(into, h)
		}
	}
	return into
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	// Keep leading acronyms readable: "GValue" becomes "gValue"
	return strings.ToLower(s[:1]) + s[1:]
}
