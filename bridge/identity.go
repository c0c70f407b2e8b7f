// Package bridge is the runtime support linked into generated bindings.
//
// It keeps the mapping between native object handles and managed proxies,
// stores managed values handed to native code as callback user data, and
// converts flag sets. Nothing in this package depends on cgo: native calls
// are reached through the Natives interface the generated code implements.
package bridge

import (
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"girbind/internal/errors"
	"girbind/internal/logger"
)

// ErrDanglingReference is returned when a proxy is used after its native object was destroyed.
var ErrDanglingReference = errors.ErrDanglingReference

// Handle is the address of a native object.
type Handle uintptr

// Natives is the native object system as seen by the identity map.
type Natives interface {
	Ref(h Handle)
	Unref(h Handle)
	// WatchFinalize arranges for fn to run once the native object is destroyed.
	WatchFinalize(h Handle, fn func())
}

// Proxy is implemented by every generated proxy type.
type Proxy interface {
	NativeInstance() *Instance
}

type state struct {
	alive  atomic.Bool
	strong atomic.Bool
}

// Instance is the managed side of one native object. Generated proxies embed it.
type Instance struct {
	handle Handle
	state  *state
	owner  any
	id     *Identity

	mu        sync.Mutex
	listeners []listener
}

// Handle returns the native handle, or zero after the native object was destroyed.
func (i *Instance) Handle() Handle {
	if i == nil || !i.state.alive.Load() {
		return 0
	}
	return i.handle
}

// Alive reports whether the native object still exists.
func (i *Instance) Alive() bool {
	return i != nil && i.state.alive.Load()
}

// Proxy returns the generated proxy wrapping this instance.
func (i *Instance) Proxy() any {
	return i.owner
}

// Release drops the strong reference the proxy holds, if any. The proxy keeps
// working as long as something else keeps the native object alive.
func (i *Instance) Release() {
	if i == nil {
		return
	}
	if i.state.strong.CompareAndSwap(true, false) {
		i.id.natives.Unref(i.handle)
	}
}

type entry struct {
	mu    sync.Mutex
	proxy weak.Pointer[Instance]
}

// Identity maps native handles to their unique live proxy.
type Identity struct {
	natives Natives
	entries sync.Map // Handle -> *entry
	watched sync.Map // Handle -> struct{}
}

// NewIdentity creates an identity map over natives.
func NewIdentity(natives Natives) *Identity {
	return &Identity{natives: natives}
}

// ToManaged returns the proxy of h, creating it with wrap when none is live.
// adopt is set when the crossing transfers a native reference to the caller;
// otherwise the proxy takes its own reference. A proxy holds at most one
// native reference, released when the proxy is collected or Released.
func (id *Identity) ToManaged(h Handle, adopt bool, wrap func(*Instance) any) any {
	if h == 0 {
		return nil
	}

	value, _ := id.entries.LoadOrStore(h, &entry{})
	e := value.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()

	if inst := e.proxy.Value(); inst != nil && inst.state.alive.Load() {
		if !inst.state.strong.CompareAndSwap(false, true) {
			// Already strong, drop the duplicate reference handed to us
			if adopt {
				id.natives.Unref(h)
			}
		} else if !adopt {
			id.natives.Ref(h)
		}
		return inst.owner
	}

	st := &state{}
	st.alive.Store(true)
	st.strong.Store(true)
	if !adopt {
		id.natives.Ref(h)
	}

	inst := &Instance{handle: h, state: st, id: id}
	inst.owner = wrap(inst)
	e.proxy = weak.Make(inst)
	runtime.AddCleanup(inst, func(st *state) {
		if st.strong.CompareAndSwap(true, false) && st.alive.Load() {
			id.natives.Unref(h)
		}
	}, st)

	if _, seen := id.watched.LoadOrStore(h, struct{}{}); !seen {
		id.natives.WatchFinalize(h, func() { id.Finalized(h) })
	}

	logger.Debugw("created proxy", "handle", h, "adopted", adopt)
	return inst.owner
}

// ToNative returns the handle behind p. A nil proxy maps to the zero handle.
func (id *Identity) ToNative(p Proxy) (Handle, error) {
	if p == nil {
		return 0, nil
	}
	inst := p.NativeInstance()
	if inst == nil {
		return 0, nil
	}
	if !inst.state.alive.Load() {
		return 0, errors.Wrapf(ErrDanglingReference, "native object %#x", uintptr(inst.handle))
	}
	return inst.handle, nil
}

// Finalized invalidates the proxy of h after the native object was destroyed.
func (id *Identity) Finalized(h Handle) {
	id.watched.Delete(h)
	value, ok := id.entries.Load(h)
	if !ok {
		return
	}
	e := value.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()

	if inst := e.proxy.Value(); inst != nil {
		inst.state.alive.Store(false)
		inst.state.strong.Store(false)
	}
	id.entries.CompareAndDelete(h, e)
}

// Len returns the number of handles with a proxy entry.
func (id *Identity) Len() int {
	n := 0
	id.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
