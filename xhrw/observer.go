package xhrw

import "context"

// Observer is notified synchronously every time the dispatch primitive is
// invoked, before the request is actually sent. It runs on the dispatching
// goroutine, so an observer registered with a host used from several
// goroutines must be goroutine safe. Sending another request from an observer
// is allowed, that request is notified inline.
type Observer func(req Request)

// DispatchFunc is the dispatch primitive: it initiates the exchange for an
// opened request. body is forwarded as given by the caller.
type DispatchFunc func(ctx context.Context, req Request, body []byte) error

// Host owns the binding point of the dispatch primitive. Call sites always go
// through whatever Dispatcher currently returns.
type Host interface {
	Name() string
	Dispatcher() DispatchFunc
	SetDispatcher(fn DispatchFunc)
}
