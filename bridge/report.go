package bridge

import (
	"sync"

	"girbind/internal/logger"
)

var (
	handlerMu    sync.RWMutex
	errorHandler func(error)
)

// SetErrorHandler installs fn to receive errors raised while native code
// calls into managed code. Passing nil restores logging only.
func SetErrorHandler(fn func(error)) {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	errorHandler = fn
}

// Report hands err to the installed error handler. Trampolines cannot return
// errors to their native caller, so they report them and return a zero value.
func Report(err error) {
	if err == nil {
		return
	}
	logger.Errorw("error in callback", "error", err)

	handlerMu.RLock()
	fn := errorHandler
	handlerMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// NativeError is an error reported by a native function through a GError.
type NativeError struct {
	Domain  uint32
	Code    int
	Message string
}

func (e *NativeError) Error() string {
	return e.Message
}
