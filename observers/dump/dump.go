// Package dump logs a full dump of each dispatched request handle
package dump

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
	"gitlab.com/xhrwatcher/xhrw"
)

type snapshot struct {
	ID      string
	Method  string
	URL     string
	State   string
	Headers map[string][]string
}

var config = &spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// New debug observer, writes at debug level so it's free when disabled
func New(logger *zerolog.Logger) xhrw.Observer {
	return func(req xhrw.Request) {
		if logger.GetLevel() > zerolog.DebugLevel {
			return
		}
		logger.Debug().Str("request_id", req.ID()).Msg(Sdump(req))
	}
}

// Sdump the dispatch time view of a handle
func Sdump(req xhrw.Request) string {
	return config.Sdump(&snapshot{
		ID:      req.ID(),
		Method:  req.Method(),
		URL:     req.URL(),
		State:   req.ReadyState().String(),
		Headers: req.RequestHeader(),
	})
}
