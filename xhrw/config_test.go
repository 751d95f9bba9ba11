package xhrw_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml"
	"gitlab.com/xhrwatcher/xhrw"
)

const exampleConfig = `
success_status = 201
report_format = "msgpack"
timeout = "2s"

[[requests]]
url = "http://example.com/a"
headers = { Accept = "application/json" }

[[requests]]
method = "POST"
url = "http://example.com/b"
body = "x=1"
`

func TestDecodeConfig(t *testing.T) {
	cfg := &xhrw.Config{}
	if err := toml.NewDecoder(strings.NewReader(exampleConfig)).Decode(cfg); err != nil {
		t.Fatalf("error decoding: %s\n", err)
	}
	cfg.SetDefaults()

	if cfg.SuccessStatus != 201 || cfg.ReportFormat != "msgpack" {
		t.Fatalf("file values should win over defaults: %#v", cfg)
	}
	if cfg.UserAgent != xhrw.DefaultConfig.UserAgent {
		t.Fatalf("expected default user agent, got %q", cfg.UserAgent)
	}
	if len(cfg.Requests) != 2 {
		t.Fatalf("expected 2 requests got %d", len(cfg.Requests))
	}
	if cfg.Requests[0].Method != "GET" || cfg.Requests[0].Headers["Accept"] != "application/json" {
		t.Fatalf("unexpected first request %#v", cfg.Requests[0])
	}
	if cfg.Requests[1].Method != "POST" || cfg.Requests[1].Body != "x=1" {
		t.Fatalf("unexpected second request %#v", cfg.Requests[1])
	}

	d, err := cfg.RequestTimeout()
	if err != nil || d != 2*time.Second {
		t.Fatalf("expected 2s timeout got %s %v", d, err)
	}
}

func TestRequestTimeout(t *testing.T) {
	cfg := &xhrw.Config{Timeout: "soon"}
	if _, err := cfg.RequestTimeout(); err == nil {
		t.Fatalf("expected error for bad duration")
	}
	cfg.Timeout = ""
	if d, err := cfg.RequestTimeout(); err != nil || d != 0 {
		t.Fatalf("empty timeout means none, got %s %v", d, err)
	}
}

func TestReadyStateString(t *testing.T) {
	expected := map[xhrw.ReadyState]string{
		xhrw.Unsent:          "unsent",
		xhrw.Opened:          "opened",
		xhrw.HeadersReceived: "headers_received",
		xhrw.Loading:         "loading",
		xhrw.Done:            "done",
		xhrw.ReadyState(9):   "invalid",
	}
	for state, s := range expected {
		if state.String() != s {
			t.Fatalf("expected %s got %s", s, state.String())
		}
	}
}
