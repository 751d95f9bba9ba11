package mock

import (
	"context"
	"sync"

	"gitlab.com/xhrwatcher/xhrw"
)

// Call records one invocation of the underlying primitive
type Call struct {
	Req  xhrw.Request
	Body []byte
}

// Host with a recording primitive bound to its dispatch slot
type Host struct {
	lock     sync.Mutex
	dispatch xhrw.DispatchFunc
	Calls    []*Call

	// SendFn runs inside the primitive after the call is recorded
	SendFn func(ctx context.Context, req xhrw.Request, body []byte) error
}

// MakeMockHost whose primitive records calls and returns nil
func MakeMockHost() *Host {
	h := &Host{Calls: make([]*Call, 0)}
	h.dispatch = h.primitive
	h.SendFn = func(ctx context.Context, req xhrw.Request, body []byte) error {
		return nil
	}
	return h
}

func (h *Host) Name() string {
	return "mock"
}

func (h *Host) Dispatcher() xhrw.DispatchFunc {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.dispatch
}

func (h *Host) SetDispatcher(fn xhrw.DispatchFunc) {
	h.lock.Lock()
	h.dispatch = fn
	h.lock.Unlock()
}

// Send is what a call site does: go through the currently bound primitive
func (h *Host) Send(ctx context.Context, req xhrw.Request, body []byte) error {
	return h.Dispatcher()(ctx, req, body)
}

// CallCount of the original primitive
func (h *Host) CallCount() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.Calls)
}

func (h *Host) primitive(ctx context.Context, req xhrw.Request, body []byte) error {
	h.lock.Lock()
	h.Calls = append(h.Calls, &Call{Req: req, Body: body})
	h.lock.Unlock()
	return h.SendFn(ctx, req, body)
}
