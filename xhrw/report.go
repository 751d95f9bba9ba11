package xhrw

import "time"

// Report of an observed response
type Report struct {
	ID          string    `json:"id" msgpack:"id"`
	Host        string    `json:"host" msgpack:"host"`
	Method      string    `json:"method" msgpack:"method"`
	URL         string    `json:"url" msgpack:"url"`
	Status      int       `json:"status" msgpack:"status"`
	ContentType string    `json:"content_type,omitempty" msgpack:"content_type,omitempty"`
	Payload     []byte    `json:"payload,omitempty" msgpack:"payload,omitempty"`
	Observed    time.Time `json:"observed" msgpack:"observed"`
}

// Reporter receives reports from observers
type Reporter interface {
	Add(report *Report)
}
