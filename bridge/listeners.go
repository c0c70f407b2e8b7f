package bridge

type listener struct {
	signal  string
	value   any
	handler uint64
}

// AddListener records that value was connected to signal under handler id h.
// Listeners are compared with ==, so they must be comparable values.
func (i *Instance) AddListener(signal string, value any, h uint64) {
	if i == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.listeners = append(i.listeners, listener{signal: signal, value: value, handler: h})
}

// RemoveListener forgets the first connection of value to signal and returns
// its handler id.
func (i *Instance) RemoveListener(signal string, value any) (uint64, bool) {
	if i == nil {
		return 0, false
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	for k, l := range i.listeners {
		if l.signal == signal && l.value == value {
			i.listeners = append(i.listeners[:k], i.listeners[k+1:]...)
			return l.handler, true
		}
	}
	return 0, false
}

// Listeners returns the number of listeners connected to signal.
func (i *Instance) Listeners(signal string) int {
	if i == nil {
		return 0
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for _, l := range i.listeners {
		if l.signal == signal {
			n++
		}
	}
	return n
}
