// Package browser watches XMLHttpRequests of pages in a real chrome. The
// interception script is registered for every new document and completed
// requests come back through a runtime binding.
package browser

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/wirepair/gcd/v2"
	"github.com/wirepair/gcd/v2/gcdapi"
	"gitlab.com/xhrwatcher/xhrw"
)

// DefaultBinding is the name of the function the page posts reports to
const DefaultBinding = "__xhrwatcherReport"

const hostName = "browser"

type Option func(w *Watcher)

// WithBinding overrides the binding name exposed to the page
func WithBinding(name string) Option {
	return func(w *Watcher) {
		w.binding = name
	}
}

// WithStatus reports requests completing with status instead of 200
func WithStatus(status int) Option {
	return func(w *Watcher) {
		w.status = status
	}
}

type bindingPayload struct {
	Method      string `json:"method"`
	URL         string `json:"url"`
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Response    string `json:"response"`
}

// Watcher relays reports posted by the interception script of one tab
type Watcher struct {
	reported int64
	bctx     *xhrw.Context
	log      *zerolog.Logger
	target   *gcd.ChromeTarget
	binding  string
	status   int
}

// Watch enables the runtime and page domains of target, exposes the binding
// and registers the interception script for every document loaded afterwards.
func Watch(bctx *xhrw.Context, target *gcd.ChromeTarget, opts ...Option) (*Watcher, error) {
	logger := bctx.Log.With().Str("host", hostName).Logger()
	w := &Watcher{
		bctx:    bctx,
		log:     &logger,
		target:  target,
		binding: DefaultBinding,
		status:  bctx.Config.SuccessStatus,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.status == 0 {
		w.status = xhrw.DefaultConfig.SuccessStatus
	}

	ctx := bctx.Ctx
	if _, err := target.Runtime.Enable(ctx); err != nil {
		return nil, errors.Wrap(err, "enabling runtime")
	}
	if _, err := target.Page.Enable(ctx); err != nil {
		return nil, errors.Wrap(err, "enabling page")
	}

	target.Subscribe("Runtime.bindingCalled", w.onBindingCalled)
	if _, err := target.Runtime.AddBindingWithParams(ctx, &gcdapi.RuntimeAddBindingParams{Name: w.binding}); err != nil {
		return nil, errors.Wrapf(err, "adding binding %s", w.binding)
	}

	params := &gcdapi.PageAddScriptToEvaluateOnNewDocumentParams{Source: Script(w.binding, w.status)}
	if _, err := target.Page.AddScriptToEvaluateOnNewDocumentWithParams(ctx, params); err != nil {
		return nil, errors.Wrap(err, "adding interception script")
	}
	w.log.Info().Str("binding", w.binding).Int("status", w.status).Msg("interception script registered")
	return w, nil
}

// Navigate the tab to url
func (w *Watcher) Navigate(ctx context.Context, url string) error {
	_, _, errText, err := w.target.Page.NavigateWithParams(ctx, &gcdapi.PageNavigateParams{Url: url})
	if err != nil {
		return errors.Wrapf(err, "navigating to %s", url)
	}
	if errText != "" {
		return errors.Errorf("navigating to %s: %s", url, errText)
	}
	return nil
}

// Reported is how many reports were handed to the reporter
func (w *Watcher) Reported() int64 {
	return atomic.LoadInt64(&w.reported)
}

func (w *Watcher) onBindingCalled(target *gcd.ChromeTarget, payload []byte) {
	evt := &gcdapi.RuntimeBindingCalledEvent{}
	if err := json.Unmarshal(payload, evt); err != nil {
		w.log.Warn().Err(err).Msg("failed to decode binding event")
		return
	}
	if evt.Params.Name != w.binding {
		return
	}

	report, err := DecodeReport(evt.Params.Payload)
	if err != nil {
		w.log.Warn().Err(err).Msg("dropping malformed report")
		return
	}
	atomic.AddInt64(&w.reported, 1)
	w.bctx.Reporter.Add(report)
}

// DecodeReport turns a payload posted by the interception script into a report
func DecodeReport(payload string) (*xhrw.Report, error) {
	p := &bindingPayload{}
	if err := json.Unmarshal([]byte(payload), p); err != nil {
		return nil, errors.Wrap(err, "decoding binding payload")
	}
	if p.URL == "" {
		return nil, errors.New("binding payload has no url")
	}
	return &xhrw.Report{
		ID:          uuid.New().String(),
		Host:        hostName,
		Method:      p.Method,
		URL:         p.URL,
		Status:      p.Status,
		ContentType: p.ContentType,
		Payload:     []byte(p.Response),
		Observed:    time.Now(),
	}, nil
}
