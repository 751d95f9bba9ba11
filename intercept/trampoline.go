package intercept

import (
	"context"
	"runtime/debug"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gitlab.com/xhrwatcher/xhrw"
)

// trampoline is interposed in place of the dispatch primitive
type trampoline struct {
	failures *int64
	original xhrw.DispatchFunc
	registry *Registry
	log      *zerolog.Logger
}

// Wrap returns a dispatch capability that notifies every observer in registry,
// in order, before forwarding to original. Observer panics are logged to
// logger and do not stop the remaining observers or the forwarding.
func Wrap(original xhrw.DispatchFunc, registry *Registry, logger *zerolog.Logger) xhrw.DispatchFunc {
	var failures int64
	return newTrampoline(original, registry, logger, &failures).dispatch
}

func newTrampoline(original xhrw.DispatchFunc, registry *Registry, logger *zerolog.Logger, failures *int64) *trampoline {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &trampoline{
		failures: failures,
		original: original,
		registry: registry,
		log:      logger,
	}
}

func (t *trampoline) dispatch(ctx context.Context, req xhrw.Request, body []byte) error {
	t.notify(req)
	return t.original(ctx, req, body)
}

// notify runs on the caller's goroutine and holds no lock, so an observer may
// itself dispatch; that nested dispatch is notified inline before the outer
// one continues. Observers shared by concurrent callers must be goroutine safe.
func (t *trampoline) notify(req xhrw.Request) {
	observers := t.registry.Snapshot()
	for i, obs := range observers {
		t.call(i, obs, req)
	}
}

func (t *trampoline) call(index int, obs xhrw.Observer, req xhrw.Request) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		atomic.AddInt64(t.failures, 1)
		evt := t.log.Error().Int("observer", index).Interface("panic", r).Bytes("stack", debug.Stack())
		if id, method, url, ok := describe(req); ok {
			evt = evt.Str("request_id", id).Str("method", method).Str("url", url)
		}
		evt.Msg("observer failed, continuing dispatch")
	}()
	obs(req)
}

// describe reads the handle's identity for logging. The handle may be the
// reason the observer failed, so its accessors are not trusted either.
func describe(req xhrw.Request) (id, method, url string, ok bool) {
	if req == nil {
		return "", "", "", false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return req.ID(), req.Method(), req.URL(), true
}
