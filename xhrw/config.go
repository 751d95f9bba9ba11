package xhrw

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// RequestConfig describes a request the watch command issues through the host
type RequestConfig struct {
	Method  string            `toml:"method"`
	URL     string            `toml:"url"`
	Headers map[string]string `toml:"headers"`
	Body    string            `toml:"body"`
}

// Config for xhrwatcher
type Config struct {
	SuccessStatus int              `toml:"success_status"`
	ReportFormat  string           `toml:"report_format"`
	ReportFile    string           `toml:"report_file"`
	Timeout       string           `toml:"timeout"`
	UserAgent     string           `toml:"user_agent"`
	ChromePath    string           `toml:"chrome_path"`
	Dump          bool             `toml:"dump"`
	Requests      []*RequestConfig `toml:"requests"`
}

// DefaultConfig values used when neither file nor flags set them
var DefaultConfig = Config{
	SuccessStatus: http.StatusOK,
	ReportFormat:  "json",
	Timeout:       "30s",
	UserAgent:     "xhrwatcher/0.1",
}

// SetDefaults fills in zero values
func (c *Config) SetDefaults() {
	if c.SuccessStatus == 0 {
		c.SuccessStatus = DefaultConfig.SuccessStatus
	}
	if c.ReportFormat == "" {
		c.ReportFormat = DefaultConfig.ReportFormat
	}
	if c.Timeout == "" {
		c.Timeout = DefaultConfig.Timeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultConfig.UserAgent
	}
	for _, r := range c.Requests {
		if r.Method == "" {
			r.Method = http.MethodGet
		}
	}
}

// RequestTimeout parses Timeout, zero means no timeout
func (c *Config) RequestTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid timeout %q", c.Timeout)
	}
	return d, nil
}
