// Package jsrt hosts page scripts in a JavaScript runtime whose XMLHttpRequest
// sends through the Go dispatch slot, so JS and Go observers share one
// interceptor.
package jsrt

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gitlab.com/xhrwatcher/intercept"
	"gitlab.com/xhrwatcher/xhr"
	"gitlab.com/xhrwatcher/xhrw"
)

type handle struct {
	req *xhr.Request
	obj *goja.Object
	// set while open runs on the loop, its readystatechange is applied inline
	inOpen bool
}

// Runtime is a single JS environment. Every touch of the vm happens on the
// loop goroutine.
type Runtime struct {
	bctx *xhrw.Context
	log  *zerolog.Logger
	host *xhr.Host
	ic   *intercept.Interceptor
	vm   *goja.Runtime
	loop *loop

	// only touched on the loop
	handles map[string]*handle
	started int64

	startedLock *sync.Mutex
	startedSeen int64
}

// New runtime with its own xhr host. The interceptor is installed on that host
// so it fails if ic already wraps another primitive.
func New(bctx *xhrw.Context, ic *intercept.Interceptor, opts ...xhr.Option) (*Runtime, error) {
	host, err := xhr.New(bctx, opts...)
	if err != nil {
		return nil, err
	}

	if err := ic.Install(host); err != nil {
		return nil, errors.Wrap(err, "installing interceptor on js host")
	}

	logger := bctx.Log.With().Str("host", "jsrt").Logger()
	r := &Runtime{
		bctx:        bctx,
		log:         &logger,
		host:        host,
		ic:          ic,
		vm:          goja.New(),
		loop:        newLoop(),
		handles:     make(map[string]*handle),
		startedLock: &sync.Mutex{},
	}
	go r.loop.run()

	var initErr error
	if !r.loop.call(func() { initErr = r.init() }) {
		return nil, errors.New("js loop stopped during init")
	}
	if initErr != nil {
		r.Close()
		return nil, initErr
	}
	return r, nil
}

func (r *Runtime) init() error {
	new(require.Registry).Enable(r.vm)
	console.Enable(r.vm)

	native := r.vm.NewObject()
	native.Set("create", r.nativeCreate)
	native.Set("open", r.nativeOpen)
	native.Set("setRequestHeader", r.nativeSetRequestHeader)
	native.Set("send", r.nativeSend)
	native.Set("getResponseHeader", r.nativeGetResponseHeader)
	native.Set("listenerError", r.nativeListenerError)
	native.Set("addCallback", r.nativeAddCallback)

	v, err := r.vm.RunString(prelude)
	if err != nil {
		return errors.Wrap(err, "evaluating prelude")
	}
	setup, ok := goja.AssertFunction(v)
	if !ok {
		return errors.New("prelude did not evaluate to a function")
	}
	if _, err := setup(goja.Undefined(), r.vm.GlobalObject(), native); err != nil {
		return errors.Wrap(err, "running prelude")
	}
	return nil
}

// RunScript evaluates src and returns the exported result. Must not be called
// from an observer or listener.
func (r *Runtime) RunScript(name, src string) (interface{}, error) {
	var result interface{}
	var err error
	ok := r.loop.call(func() {
		var v goja.Value
		v, err = r.vm.RunScript(name, src)
		if err != nil {
			err = errors.Wrapf(err, "running %s", name)
			return
		}
		if v != nil {
			result = v.Export()
		}
	})
	if !ok {
		return nil, errors.New("js runtime closed")
	}
	return result, err
}

// Wait until every request scripts started has completed and its events were
// delivered to JS, including requests started by those event handlers.
func (r *Runtime) Wait(ctx context.Context) error {
	for {
		if err := r.host.Wait(ctx); err != nil {
			return err
		}

		var started int64
		if !r.loop.call(func() { started = r.started }) {
			return errors.New("js runtime closed")
		}

		r.startedLock.Lock()
		settled := started == r.startedSeen
		r.startedSeen = started
		r.startedLock.Unlock()
		if settled {
			return nil
		}
	}
}

// Close stops the loop, in flight requests still complete but JS no longer sees them
func (r *Runtime) Close() {
	r.loop.stop()
}

// post a job to the loop, a panicking job is logged instead of killing the loop
func (r *Runtime) post(job func()) {
	r.loop.post(func() {
		defer func() {
			if p := recover(); p != nil {
				r.log.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Msg("js job failed")
			}
		}()
		job()
	})
}

func (r *Runtime) throw(err error) {
	panic(r.vm.NewGoError(err))
}

func (r *Runtime) lookup(call goja.FunctionCall) *handle {
	id := call.Argument(0).String()
	h, ok := r.handles[id]
	if !ok {
		panic(r.vm.NewTypeError(fmt.Sprintf("unknown XMLHttpRequest %q", id)))
	}
	return h
}

func (r *Runtime) nativeCreate(call goja.FunctionCall) goja.Value {
	obj := call.Argument(0).ToObject(r.vm)
	req := r.host.NewRequest()
	h := &handle{req: req, obj: obj}
	r.handles[req.ID()] = h

	for _, evt := range []xhrw.EventType{xhrw.EvtReadyStateChange, xhrw.EvtLoadStart, xhrw.EvtLoad, xhrw.EvtError, xhrw.EvtLoadEnd} {
		req.AddEventListener(evt, r.relay(h))
	}
	return r.vm.ToValue(req.ID())
}

type stateView struct {
	state      xhrw.ReadyState
	status     int
	statusText string
	response   string
	url        string
}

// relay copies the handle's state as of the event and replays the event in JS
func (r *Runtime) relay(h *handle) xhrw.Listener {
	return func(req xhrw.Request, evt xhrw.EventType) {
		view := &stateView{
			state:      req.ReadyState(),
			status:     req.Status(),
			statusText: req.StatusText(),
			response:   string(req.Response()),
			url:        req.URL(),
		}
		if h.inOpen {
			r.apply(h, view, evt)
			return
		}
		r.post(func() { r.apply(h, view, evt) })
	}
}

func (r *Runtime) apply(h *handle, view *stateView, evt xhrw.EventType) {
	h.obj.Set("readyState", int(view.state))
	h.obj.Set("status", view.status)
	h.obj.Set("statusText", view.statusText)
	if view.state == xhrw.Done {
		h.obj.Set("response", view.response)
		h.obj.Set("responseText", view.response)
		h.obj.Set("responseURL", view.url)
	}
	if dispatch, ok := goja.AssertFunction(h.obj.Get("__dispatch")); ok {
		if _, err := dispatch(h.obj, r.vm.ToValue(string(evt))); err != nil {
			r.log.Warn().Err(err).Str("request_id", h.req.ID()).Msg("failed to dispatch js event")
		}
	}
	if evt == xhrw.EvtLoadEnd {
		delete(r.handles, h.req.ID())
	}
}

func (r *Runtime) nativeOpen(call goja.FunctionCall) goja.Value {
	h := r.lookup(call)
	h.inOpen = true
	err := h.req.Open(call.Argument(1).String(), call.Argument(2).String())
	h.inOpen = false
	if err != nil {
		r.throw(err)
	}
	return goja.Undefined()
}

func (r *Runtime) nativeSetRequestHeader(call goja.FunctionCall) goja.Value {
	h := r.lookup(call)
	if err := h.req.SetRequestHeader(call.Argument(1).String(), call.Argument(2).String()); err != nil {
		r.throw(err)
	}
	return goja.Undefined()
}

func (r *Runtime) nativeSend(call goja.FunctionCall) goja.Value {
	h := r.lookup(call)
	var body []byte
	if arg := call.Argument(1); !goja.IsNull(arg) && !goja.IsUndefined(arg) {
		body = []byte(arg.String())
	}

	if err := h.req.Send(r.bctx.Ctx, body); err != nil {
		r.throw(err)
	}
	r.started++
	return goja.Undefined()
}

func (r *Runtime) nativeGetResponseHeader(call goja.FunctionCall) goja.Value {
	h := r.lookup(call)
	if h.req.ReadyState() < xhrw.HeadersReceived {
		return goja.Null()
	}
	values := h.req.ResponseHeader().Values(call.Argument(1).String())
	if len(values) == 0 {
		return goja.Null()
	}
	return r.vm.ToValue(strings.Join(values, ", "))
}

func (r *Runtime) nativeListenerError(call goja.FunctionCall) goja.Value {
	r.log.Warn().
		Str("request_id", call.Argument(0).String()).
		Str("event", call.Argument(1).String()).
		Str("error", call.Argument(2).String()).
		Msg("js event listener threw")
	return goja.Undefined()
}

func (r *Runtime) nativeAddCallback(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("addXMLRequestCallback expects a function"))
	}
	if err := intercept.AddCallback(r.ic, r.host, r.observer(fn)); err != nil {
		r.throw(err)
	}
	return goja.Undefined()
}

// observer adapts a JS callback. It is only ever notified from nativeSend, so
// it already runs on the loop. A thrown exception is raised as a panic so the
// trampoline isolates and counts it like any other observer failure.
func (r *Runtime) observer(fn goja.Callable) xhrw.Observer {
	return func(req xhrw.Request) {
		h, ok := r.handles[req.ID()]
		if !ok {
			r.log.Warn().Str("request_id", req.ID()).Msg("js observer skipped request not created by a script")
			return
		}
		if _, err := fn(goja.Undefined(), h.obj); err != nil {
			panic(errors.Wrap(err, "js observer threw"))
		}
	}
}
