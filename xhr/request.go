package xhr

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gitlab.com/xhrwatcher/xhrw"
)

// Request is one XMLHttpRequest style exchange. All listeners of a request are
// called from a single goroutine in lifecycle order.
type Request struct {
	host *Host
	id   string

	lock       *sync.RWMutex
	method     string
	url        string
	header     http.Header
	state      xhrw.ReadyState
	sent       bool
	status     int
	statusText string
	respHeader http.Header
	response   []byte
	err        error
	listeners  map[xhrw.EventType][]xhrw.Listener
	done       chan struct{}
}

func newRequest(h *Host) *Request {
	return &Request{
		host:       h,
		id:         uuid.New().String(),
		lock:       &sync.RWMutex{},
		header:     make(http.Header),
		state:      xhrw.Unsent,
		respHeader: make(http.Header),
		listeners:  make(map[xhrw.EventType][]xhrw.Listener),
		done:       make(chan struct{}),
	}
}

// ID unique to this handle
func (r *Request) ID() string {
	return r.id
}

func (r *Request) Method() string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.method
}

func (r *Request) URL() string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.url
}

// RequestHeader returns a copy of the headers set so far
func (r *Request) RequestHeader() http.Header {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.header.Clone()
}

func (r *Request) ReadyState() xhrw.ReadyState {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.state
}

// Status code, 0 until headers are received or when the exchange failed
func (r *Request) Status() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.status
}

func (r *Request) StatusText() string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.statusText
}

func (r *Request) ResponseHeader() http.Header {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.respHeader.Clone()
}

// Response body, only set once the request is done
func (r *Request) Response() []byte {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.response
}

// Err of the exchange if it failed
func (r *Request) Err() error {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.err
}

// AddEventListener subscribes fn to evt, listeners run in subscription order
func (r *Request) AddEventListener(evt xhrw.EventType, fn xhrw.Listener) {
	if fn == nil {
		return
	}
	r.lock.Lock()
	r.listeners[evt] = append(r.listeners[evt], fn)
	r.lock.Unlock()
}

// Open the request, only valid once on an unsent handle
func (r *Request) Open(method, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(err, "invalid url %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("unsupported scheme %q", u.Scheme)
	}

	r.lock.Lock()
	if r.state != xhrw.Unsent {
		r.lock.Unlock()
		return errors.Wrapf(xhrw.ErrInvalidState, "open called in state %s", r.state)
	}
	r.method = strings.ToUpper(method)
	r.url = u.String()
	r.state = xhrw.Opened
	r.lock.Unlock()

	r.fire(xhrw.EvtReadyStateChange)
	return nil
}

// SetRequestHeader adds a header value, only valid between open and send
func (r *Request) SetRequestHeader(name, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.state != xhrw.Opened || r.sent {
		return errors.Wrapf(xhrw.ErrInvalidState, "set header in state %s", r.state)
	}
	r.header.Add(name, value)
	return nil
}

// Send goes through whatever primitive is currently bound to the host
func (r *Request) Send(ctx context.Context, body []byte) error {
	return r.host.Dispatcher()(ctx, r, body)
}

// Wait until loadend fired or ctx is done
func (r *Request) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed after loadend fired
func (r *Request) Done() <-chan struct{} {
	return r.done
}

func (r *Request) markSent() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.state != xhrw.Opened || r.sent {
		return errors.Wrapf(xhrw.ErrInvalidState, "send called in state %s (sent: %v)", r.state, r.sent)
	}
	r.sent = true
	return nil
}

func (r *Request) exchange(ctx context.Context, body []byte) {
	defer close(r.done)
	r.fire(xhrw.EvtLoadStart)

	r.lock.RLock()
	method, target, header := r.method, r.url, r.header.Clone()
	r.lock.RUnlock()

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	var httpReq *http.Request
	var err error
	if reader != nil {
		httpReq, err = http.NewRequestWithContext(ctx, method, target, reader)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, method, target, nil)
	}
	if err != nil {
		r.fail(errors.Wrap(err, "building request"))
		return
	}
	httpReq.Header = header
	if httpReq.Header.Get("User-Agent") == "" && r.host.userAgent != "" {
		httpReq.Header.Set("User-Agent", r.host.userAgent)
	}

	resp, err := r.host.client.Do(httpReq)
	if err != nil {
		r.fail(errors.Wrap(err, "sending request"))
		return
	}
	defer resp.Body.Close()

	r.lock.Lock()
	r.status = resp.StatusCode
	r.statusText = http.StatusText(resp.StatusCode)
	r.respHeader = resp.Header.Clone()
	r.state = xhrw.HeadersReceived
	r.lock.Unlock()
	r.fire(xhrw.EvtReadyStateChange)

	r.setState(xhrw.Loading)
	r.fire(xhrw.EvtReadyStateChange)

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		r.fail(errors.Wrap(err, "reading response body"))
		return
	}

	r.lock.Lock()
	r.response = data
	r.state = xhrw.Done
	r.lock.Unlock()
	r.fire(xhrw.EvtReadyStateChange)
	r.fire(xhrw.EvtLoad)
	r.fire(xhrw.EvtLoadEnd)
}

// fail moves straight to done with a zero status, like a network error in a browser
func (r *Request) fail(err error) {
	r.host.log.Warn().Err(err).Str("request_id", r.id).Msg("request failed")
	r.lock.Lock()
	r.err = err
	r.status = 0
	r.statusText = ""
	r.response = nil
	r.state = xhrw.Done
	r.lock.Unlock()
	r.fire(xhrw.EvtReadyStateChange)
	r.fire(xhrw.EvtError)
	r.fire(xhrw.EvtLoadEnd)
}

func (r *Request) setState(state xhrw.ReadyState) {
	r.lock.Lock()
	r.state = state
	r.lock.Unlock()
}

// fire calls the listeners of evt, a panicking listener is logged and skipped
func (r *Request) fire(evt xhrw.EventType) {
	r.lock.RLock()
	listeners := append([]xhrw.Listener(nil), r.listeners[evt]...)
	r.lock.RUnlock()

	for _, fn := range listeners {
		r.callListener(fn, evt)
	}
}

func (r *Request) callListener(fn xhrw.Listener, evt xhrw.EventType) {
	defer func() {
		if p := recover(); p != nil {
			r.host.log.Error().Str("request_id", r.id).Str("event", string(evt)).
				Interface("panic", p).Bytes("stack", debug.Stack()).Msg("event listener failed")
		}
	}()
	fn(r, evt)
}
