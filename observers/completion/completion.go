// Package completion reports the payload of requests that finished successfully
package completion

import (
	"net/http"
	"time"

	"gitlab.com/xhrwatcher/xhrw"
)

// Option for the completion observer
type Option func(o *observer)

// WithStatus overrides the success status code (default 200)
func WithStatus(status int) Option {
	return func(o *observer) {
		o.status = status
	}
}

// WithHostName tags reports with the name of the host they came from
func WithHostName(name string) Option {
	return func(o *observer) {
		o.hostName = name
	}
}

type observer struct {
	reporter xhrw.Reporter
	status   int
	hostName string
}

// New completion observer. It subscribes to every dispatched request's load
// signal and reports the response only when the request is done and the
// status is the success code; everything else is ignored.
func New(reporter xhrw.Reporter, opts ...Option) xhrw.Observer {
	o := &observer{reporter: reporter, status: http.StatusOK}
	for _, opt := range opts {
		opt(o)
	}
	return o.observe
}

func (o *observer) observe(req xhrw.Request) {
	req.AddEventListener(xhrw.EvtLoad, o.onLoad)
}

func (o *observer) onLoad(req xhrw.Request, evt xhrw.EventType) {
	if req.ReadyState() != xhrw.Done || req.Status() != o.status {
		return
	}

	o.reporter.Add(&xhrw.Report{
		ID:          req.ID(),
		Host:        o.hostName,
		Method:      req.Method(),
		URL:         req.URL(),
		Status:      req.Status(),
		ContentType: req.ResponseHeader().Get("Content-Type"),
		Payload:     req.Response(),
		Observed:    time.Now(),
	})
}
