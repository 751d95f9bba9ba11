package mock

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/xhrwatcher/xhrw"
)

// MakeMockContext with a silent logger and a collecting reporter
func MakeMockContext(ctx context.Context) *xhrw.Context {
	cfg := xhrw.DefaultConfig
	bctx := xhrw.NewContext(ctx, &cfg, MakeMockReporter())
	logger := zerolog.Nop()
	bctx.Log = &logger
	return bctx
}
