package report

import (
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v4"
	"gitlab.com/xhrwatcher/xhrw"
)

// Copy does a deep copy so a reporter never shares the host's buffers
func Copy(r *xhrw.Report) *xhrw.Report {
	if r == nil {
		return nil
	}
	d, err := msgpack.Marshal(r)
	if err != nil {
		panic("failed to copy Report: " + err.Error())
	}
	c := &xhrw.Report{}
	if err = msgpack.Unmarshal(d, c); err != nil {
		panic("failed to copy Report: " + err.Error())
	}
	return c
}

// LogReporter writes reports to a zerolog logger
type LogReporter struct {
	log        *zerolog.Logger
	maxPayload int
}

// NewLogReporter truncates payloads longer than maxPayload bytes (0 for no limit)
func NewLogReporter(logger *zerolog.Logger, maxPayload int) *LogReporter {
	return &LogReporter{log: logger, maxPayload: maxPayload}
}

// Add logs the report
func (l *LogReporter) Add(report *xhrw.Report) {
	payload := report.Payload
	truncated := false
	if l.maxPayload > 0 && len(payload) > l.maxPayload {
		payload = payload[:l.maxPayload]
		truncated = true
	}
	l.log.Info().
		Str("request_id", report.ID).
		Str("host", report.Host).
		Str("method", report.Method).
		Str("url", report.URL).
		Int("status", report.Status).
		Str("content_type", report.ContentType).
		Bool("truncated", truncated).
		Str("response", string(payload)).
		Msg("response observed")
}

// Format of a stream reporter
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat case insensitively
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	}
	return "", errors.Wrapf(xhrw.ErrUnknownFormat, "%q", s)
}

type encoder interface {
	Encode(v interface{}) error
}

// StreamReporter encodes each report to a writer, json lines or a msgpack stream
type StreamReporter struct {
	lock *sync.Mutex
	log  *zerolog.Logger
	enc  encoder
}

// NewStreamReporter for w in the given format
func NewStreamReporter(w io.Writer, format Format, logger *zerolog.Logger) (*StreamReporter, error) {
	s := &StreamReporter{lock: &sync.Mutex{}, log: logger}
	switch format {
	case FormatJSON:
		s.enc = json.NewEncoder(w)
	case FormatMsgpack:
		s.enc = msgpack.NewEncoder(w)
	default:
		return nil, errors.Wrapf(xhrw.ErrUnknownFormat, "%q", format)
	}
	return s, nil
}

// Add encodes a copy of the report, encoding failures are logged
func (s *StreamReporter) Add(report *xhrw.Report) {
	c := Copy(report)
	s.lock.Lock()
	err := s.enc.Encode(c)
	s.lock.Unlock()
	if err != nil {
		s.log.Error().Err(err).Str("request_id", report.ID).Msg("failed to write report")
	}
}

type multi []xhrw.Reporter

// Multi reporter hands each report to every reporter, in order
func Multi(reporters ...xhrw.Reporter) xhrw.Reporter {
	m := make(multi, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m multi) Add(report *xhrw.Report) {
	for _, r := range m {
		r.Add(report)
	}
}
