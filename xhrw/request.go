package xhrw

import "net/http"

// ReadyState of a request handle. Transitions are linear and never go back.
type ReadyState int8

const (
	// Unsent handle created, open not called yet
	Unsent ReadyState = iota
	// Opened open was called, send may or may not have been
	Opened
	// HeadersReceived response status and headers are available
	HeadersReceived
	// Loading response body is being received
	Loading
	// Done the exchange is complete (or failed)
	Done
)

var readyStateNames = map[ReadyState]string{
	Unsent:          "unsent",
	Opened:          "opened",
	HeadersReceived: "headers_received",
	Loading:         "loading",
	Done:            "done",
}

func (s ReadyState) String() string {
	if n, ok := readyStateNames[s]; ok {
		return n
	}
	return "invalid"
}

// EventType of a request lifecycle signal
type EventType string

const (
	EvtReadyStateChange EventType = "readystatechange"
	EvtLoadStart        EventType = "loadstart"
	EvtLoad             EventType = "load"
	EvtError            EventType = "error"
	EvtLoadEnd          EventType = "loadend"
)

// Listener is called with the handle that fired the event
type Listener func(req Request, evt EventType)

// Request is the host owned handle for a single request. Observers only read
// it and subscribe to its signals.
type Request interface {
	ID() string
	Method() string
	URL() string
	RequestHeader() http.Header
	ReadyState() ReadyState
	Status() int
	StatusText() string
	ResponseHeader() http.Header
	Response() []byte
	AddEventListener(evt EventType, fn Listener)
}
