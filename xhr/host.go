package xhr

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gitlab.com/xhrwatcher/xhrw"
	"golang.org/x/net/publicsuffix"
)

// Host is an XMLHttpRequest style environment on top of net/http. Every
// request's Send goes through the dispatch slot, which starts out bound to the
// host's own primitive.
type Host struct {
	log       *zerolog.Logger
	client    *http.Client
	userAgent string

	lock     *sync.RWMutex
	dispatch xhrw.DispatchFunc

	// idle is closed whenever inflight is zero and replaced when it leaves zero
	inflightLock *sync.Mutex
	inflight     int
	idle         chan struct{}
}

// Option for configuring the host
type Option func(h *Host)

// WithClient replaces the http client (the cookie jar is kept if the client has none)
func WithClient(client *http.Client) Option {
	return func(h *Host) {
		if client.Jar == nil {
			client.Jar = h.client.Jar
		}
		h.client = client
	}
}

// WithTimeout for each exchange
func WithTimeout(timeout time.Duration) Option {
	return func(h *Host) {
		h.client.Timeout = timeout
	}
}

// WithUserAgent sets the default user agent, requests may still override it
func WithUserAgent(ua string) Option {
	return func(h *Host) {
		h.userAgent = ua
	}
}

// New host, cookies are shared between its requests like they are in a page
func New(bctx *xhrw.Context, opts ...Option) (*Host, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Wrap(err, "creating cookie jar")
	}

	logger := zerolog.Nop()
	if bctx != nil && bctx.Log != nil {
		logger = bctx.Log.With().Str("host", "xhr").Logger()
	}

	h := &Host{
		log:       &logger,
		client:    &http.Client{Jar: jar},
		userAgent: xhrw.DefaultConfig.UserAgent,
		lock:      &sync.RWMutex{},

		inflightLock: &sync.Mutex{},
		idle:         make(chan struct{}),
	}
	close(h.idle)
	h.dispatch = h.send

	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Name of the host
func (h *Host) Name() string {
	return "xhr"
}

// Dispatcher currently bound to the send slot
func (h *Host) Dispatcher() xhrw.DispatchFunc {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.dispatch
}

// SetDispatcher rebinds the send slot
func (h *Host) SetDispatcher(fn xhrw.DispatchFunc) {
	h.lock.Lock()
	h.dispatch = fn
	h.lock.Unlock()
}

// NewRequest creates an unsent handle owned by this host
func (h *Host) NewRequest() *Request {
	return newRequest(h)
}

// Fetch opens a request, sets headers and sends it through the dispatch slot
func (h *Host) Fetch(ctx context.Context, method, url string, headers map[string]string, body []byte) (*Request, error) {
	req := h.NewRequest()
	if err := req.Open(method, url); err != nil {
		return nil, err
	}

	for k, v := range headers {
		if err := req.SetRequestHeader(k, v); err != nil {
			return nil, err
		}
	}

	if err := req.Send(ctx, body); err != nil {
		return req, err
	}
	return req, nil
}

// Wait until no sent request is still before loadend, or ctx is done.
// Requests sent by listeners before their own request finished are waited for
// too.
func (h *Host) Wait(ctx context.Context) error {
	h.inflightLock.Lock()
	idle := h.idle
	h.inflightLock.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inflight is the number of requests sent that did not reach loadend yet
func (h *Host) Inflight() int {
	h.inflightLock.Lock()
	defer h.inflightLock.Unlock()
	return h.inflight
}

func (h *Host) started() {
	h.inflightLock.Lock()
	if h.inflight == 0 {
		h.idle = make(chan struct{})
	}
	h.inflight++
	h.inflightLock.Unlock()
}

func (h *Host) finished() {
	h.inflightLock.Lock()
	h.inflight--
	if h.inflight == 0 {
		close(h.idle)
	}
	h.inflightLock.Unlock()
}

// send is the host primitive: it validates the handle and starts the
// exchange, completion is signalled later through the handle's events.
func (h *Host) send(ctx context.Context, handle xhrw.Request, body []byte) error {
	req, ok := handle.(*Request)
	if !ok || req.host != h {
		return errors.Wrap(xhrw.ErrInvalidState, "request is not owned by this host")
	}

	if err := req.markSent(); err != nil {
		return err
	}

	h.started()
	go func() {
		defer h.finished()
		req.exchange(ctx, body)
	}()
	return nil
}
