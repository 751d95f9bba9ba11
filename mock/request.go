package mock

import (
	"net/http"
	"sync"

	"gitlab.com/xhrwatcher/xhrw"
)

// Request is a hand driven xhrw.Request, tests move it through its states
type Request struct {
	lock      sync.Mutex
	IDValue   string
	MethodVal string
	URLValue  string
	ReqHeader http.Header
	State     xhrw.ReadyState
	StatusVal int
	Text      string
	RespHdr   http.Header
	Body      []byte
	listeners map[xhrw.EventType][]xhrw.Listener

	AddEventListenerCalled bool
}

// MakeMockRequest in the opened state
func MakeMockRequest(method, url string) *Request {
	return &Request{
		IDValue:   "mock-" + method + "-" + url,
		MethodVal: method,
		URLValue:  url,
		ReqHeader: make(http.Header),
		State:     xhrw.Opened,
		RespHdr:   make(http.Header),
		listeners: make(map[xhrw.EventType][]xhrw.Listener),
	}
}

func (r *Request) ID() string                  { return r.IDValue }
func (r *Request) Method() string              { return r.MethodVal }
func (r *Request) URL() string                 { return r.URLValue }
func (r *Request) RequestHeader() http.Header  { return r.ReqHeader }
func (r *Request) ResponseHeader() http.Header { return r.RespHdr }
func (r *Request) StatusText() string          { return r.Text }

func (r *Request) Response() []byte {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.Body
}

func (r *Request) ReadyState() xhrw.ReadyState {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.State
}

func (r *Request) Status() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.StatusVal
}

func (r *Request) AddEventListener(evt xhrw.EventType, fn xhrw.Listener) {
	r.lock.Lock()
	r.AddEventListenerCalled = true
	r.listeners[evt] = append(r.listeners[evt], fn)
	r.lock.Unlock()
}

// Listeners subscribed to evt
func (r *Request) Listeners(evt xhrw.EventType) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.listeners[evt])
}

// Complete sets the given state/status/body and fires readystatechange, load and loadend
func (r *Request) Complete(state xhrw.ReadyState, status int, body []byte) {
	r.lock.Lock()
	r.State = state
	r.StatusVal = status
	r.Body = body
	r.lock.Unlock()
	r.Fire(xhrw.EvtReadyStateChange)
	r.Fire(xhrw.EvtLoad)
	r.Fire(xhrw.EvtLoadEnd)
}

// Fire calls listeners of evt in subscription order
func (r *Request) Fire(evt xhrw.EventType) {
	r.lock.Lock()
	listeners := append([]xhrw.Listener(nil), r.listeners[evt]...)
	r.lock.Unlock()
	for _, fn := range listeners {
		fn(r, evt)
	}
}
